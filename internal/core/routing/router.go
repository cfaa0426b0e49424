package routing

import (
	"github.com/agenthands/intake/internal/core/model"
)

// Assign returns the first handler in roster whose skills list
// subRequestType under requestType. Matching is exact and case-sensitive.
// No match is a normal outcome and yields an unassigned result.
func Assign(roster model.Roster, requestType, subRequestType string) model.AssignmentResult {
	for _, h := range roster {
		if h.Serves(requestType, subRequestType) {
			return model.AssignmentResult{
				Assigned:    true,
				HandlerID:   h.ID,
				HandlerName: h.Name,
			}
		}
	}
	return model.AssignmentResult{}
}

// Router routes extracted requests against a roster fixed at construction.
type Router struct {
	roster model.Roster
}

func NewRouter(roster model.Roster) *Router {
	return &Router{roster: roster.Clone()}
}

// Route assigns a record. Records missing a request type or sub-type are
// left unassigned.
func (r *Router) Route(recordID string, fields model.ExtractedFields) model.AssignmentResult {
	var res model.AssignmentResult
	if fields.RequestType != nil && fields.SubRequestType != nil {
		res = Assign(r.roster, *fields.RequestType, *fields.SubRequestType)
	}
	res.RecordID = recordID
	return res
}

// Roster returns a copy of the roster in priority order.
func (r *Router) Roster() model.Roster {
	return r.roster.Clone()
}
