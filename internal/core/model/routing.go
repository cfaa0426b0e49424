package model

// HandlerProfile is a person or queue that can take requests. Skills maps a
// request type to the sub-types the handler services.
type HandlerProfile struct {
	ID     int64               `json:"UserID" toml:"id" yaml:"id"`
	Name   string              `json:"Name" toml:"name" yaml:"name"`
	Skills map[string][]string `json:"SkillSet" toml:"skills" yaml:"skills"`
}

// Serves reports whether the handler lists subRequestType under requestType.
func (h HandlerProfile) Serves(requestType, subRequestType string) bool {
	subs, ok := h.Skills[requestType]
	if !ok {
		return false
	}
	for _, s := range subs {
		if s == subRequestType {
			return true
		}
	}
	return false
}

// Roster is the ordered handler list; earlier entries win.
type Roster []HandlerProfile

// Clone deep-copies the roster so later edits by the caller are not seen.
func (r Roster) Clone() Roster {
	out := make(Roster, len(r))
	for i, h := range r {
		skills := make(map[string][]string, len(h.Skills))
		for k, v := range h.Skills {
			skills[k] = append([]string(nil), v...)
		}
		out[i] = HandlerProfile{ID: h.ID, Name: h.Name, Skills: skills}
	}
	return out
}

type AssignmentResult struct {
	RecordID    string `json:"record_id"`
	Assigned    bool   `json:"assigned"`
	HandlerID   int64  `json:"handler_id,omitempty"`
	HandlerName string `json:"handler_name,omitempty"`
}
