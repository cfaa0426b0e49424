package model

// Fingerprint is the hex SHA-256 digest of an ExtractedFields tuple.
type Fingerprint string

type ConfidenceCode string

const ConfidenceHigh ConfidenceCode = "High"

// DuplicateIndexEntry is one processed record in the running index.
type DuplicateIndexEntry struct {
	RecordID    string      `json:"record_id"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Identifier  string      `json:"identifier"`
	Sender      string      `json:"sender"`
}

type DuplicateVerdict struct {
	Duplicate   bool           `json:"duplicate"`
	OriginalID  string         `json:"original_id,omitempty"` // earlier record this one repeats
	Confidence  ConfidenceCode `json:"confidence,omitempty"`
	Fingerprint Fingerprint    `json:"fingerprint"`
}
