package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/agenthands/intake/internal/core/analysis"
	"github.com/agenthands/intake/internal/core/model"
	"github.com/agenthands/intake/internal/driver"
)

// Stored document keys. Everything the pipeline persists goes through the
// helpers in this file.
const (
	keySender         = "from"
	keyDate           = "date"
	keySubject        = "subject"
	keyBody           = "body"
	keyAttachments    = "attachments"
	keyConfidence     = "confidence"
	keyConfidenceCode = "confidenceCode"
	keyDuplicateOf    = "duplicateOf"
	keyFingerprint    = "fingerprint"
	keyAssignedUser   = "AssignedUser"
	keyAnalysis       = "analysis"
	keyCaseID         = "caseId"
)

// decodeRecord reads the raw request out of a stored document. Attachments
// may be plain strings or objects carrying their text under content, body
// or text.
func decodeRecord(d driver.Document) model.RawRecord {
	rec := model.RawRecord{
		ID:      d.ID(),
		Sender:  stringValue(d[keySender]),
		Date:    stringValue(d[keyDate]),
		Subject: stringValue(d[keySubject]),
		Body:    stringValue(d[keyBody]),
	}
	if l, err := model.ParseLabel(stringValue(d[driver.KeyClassification])); err == nil {
		rec.Label = l
	}
	if c, ok := floatValue(d[keyConfidence]); ok {
		rec.Confidence = &c
	}

	switch atts := d[keyAttachments].(type) {
	case []string:
		rec.Attachments = append(rec.Attachments, atts...)
	case []any:
		for _, a := range atts {
			if s := attachmentText(a); s != "" {
				rec.Attachments = append(rec.Attachments, s)
			}
		}
	}
	return rec
}

func attachmentText(a any) string {
	switch v := a.(type) {
	case string:
		return v
	case map[string]any:
		for _, k := range []string{"content", "body", "text"} {
			if s, ok := v[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// encodeRecord is the inverse of decodeRecord for ingestion.
func encodeRecord(rec model.RawRecord) driver.Document {
	atts := make([]any, len(rec.Attachments))
	for i, a := range rec.Attachments {
		atts[i] = a
	}
	d := driver.Document{
		driver.KeyID:              rec.ID,
		keySender:                 rec.Sender,
		keyDate:                   rec.Date,
		keySubject:                rec.Subject,
		keyBody:                   rec.Body,
		keyAttachments:            atts,
		driver.KeyClassification: string(rec.Label),
	}
	if rec.Confidence != nil {
		d[keyConfidence] = *rec.Confidence
	}
	return d
}

func fieldsUpdate(rec model.RawRecord, f model.ExtractedFields) map[string]any {
	kf := map[string]any{
		driver.KeyID: rec.ID,
		keySender:    rec.Sender,
		keyDate:      rec.Date,
	}
	for _, name := range model.Fields {
		if v := f.Get(name); v != nil {
			kf[string(name)] = *v
		} else {
			kf[string(name)] = nil
		}
	}
	return map[string]any{driver.KeyExtractedFields: kf}
}

// decodeFields reads extractedKeyfields back. ok is false when the record
// has not been through extraction.
func decodeFields(d driver.Document) (model.ExtractedFields, bool) {
	kf, ok := d[driver.KeyExtractedFields].(map[string]any)
	if !ok {
		return model.ExtractedFields{}, false
	}
	var f model.ExtractedFields
	for _, name := range model.Fields {
		switch v := kf[string(name)].(type) {
		case nil:
		case string:
			f = f.With(name, model.Ptr(v))
		default:
			f = f.With(name, model.Ptr(fmt.Sprint(v)))
		}
	}
	return f, true
}

func duplicateUpdate(v model.DuplicateVerdict) map[string]any {
	set := map[string]any{
		driver.KeyIsDuplicate: v.Duplicate,
		keyFingerprint:        string(v.Fingerprint),
		keyConfidenceCode:     nil,
		keyDuplicateOf:        nil,
	}
	if v.Duplicate {
		set[keyConfidenceCode] = string(v.Confidence)
		set[keyDuplicateOf] = v.OriginalID
	}
	return set
}

func assignmentUpdate(a model.AssignmentResult) map[string]any {
	if !a.Assigned {
		return map[string]any{keyAssignedUser: nil}
	}
	return map[string]any{keyAssignedUser: map[string]any{
		"UserID": a.HandlerID,
		"Name":   a.HandlerName,
	}}
}

func analysisUpdate(a analysis.Analysis) map[string]any {
	return map[string]any{keyAnalysis: map[string]any{
		"intent":        a.Intent,
		"processedText": a.ProcessedText,
		"analysisDate":  a.AnalysisDate.Format(time.RFC3339Nano),
	}}
}

func caseUpdate(caseID string) map[string]any {
	if caseID == "" {
		return map[string]any{keyCaseID: nil}
	}
	return map[string]any{keyCaseID: caseID}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

// floatValue accepts the numeric shapes backends hand back.
func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
