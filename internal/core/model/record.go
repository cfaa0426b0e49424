package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Label is the upstream classifier's verdict for a record.
type Label string

const (
	LabelUpdate  Label = "update"
	LabelRequest Label = "request"
)

func ParseLabel(s string) (Label, error) {
	switch Label(strings.ToLower(strings.TrimSpace(s))) {
	case LabelUpdate:
		return LabelUpdate, nil
	case LabelRequest:
		return LabelRequest, nil
	}
	return "", eris.Errorf("unknown classification label %q", s)
}

// RawRecord is an ingested service request. Attachments hold text already
// converted from the original files.
type RawRecord struct {
	ID          string   `json:"id"`
	Sender      string   `json:"from"`
	Date        string   `json:"date"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments"`
	Label       Label    `json:"classification,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

// Text is the extraction input: subject and body on one line, each
// attachment appended on its own line.
func (r RawRecord) Text() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(r.Subject))
	b.WriteString(" ")
	b.WriteString(strings.TrimSpace(r.Body))
	for _, a := range r.Attachments {
		b.WriteString("\n")
		b.WriteString(a)
	}
	return b.String()
}
