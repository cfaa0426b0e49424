package dedupe

import (
	"github.com/agenthands/intake/internal/core/model"
)

// Index is the append-only register of records seen during one run.
//
// A record is a duplicate when an earlier entry shares its identifier or its
// sender and carries the same fingerprint. Only entries registered before
// the current call are visible, so a record is never marked as a duplicate
// of something that arrives later. Index is not safe for concurrent use.
type Index struct {
	entries      []model.DuplicateIndexEntry
	byIdentifier map[string][]int
	bySender     map[string][]int
}

func NewIndex() *Index {
	return &Index{
		byIdentifier: make(map[string][]int),
		bySender:     make(map[string][]int),
	}
}

// CheckAndRegister compares the record against earlier entries and then
// appends it, whatever the verdict.
//
// Absent identifiers and senders key as "", so two records that both lack
// an identifier and a sender are compared with each other.
func (x *Index) CheckAndRegister(recordID string, fields model.ExtractedFields, sender string) model.DuplicateVerdict {
	fp := Fingerprint(fields)
	identifier := model.Value(fields.Identifier)

	verdict := model.DuplicateVerdict{Fingerprint: fp}
	if pos := x.firstMatch(fp, identifier, sender); pos >= 0 {
		verdict.Duplicate = true
		verdict.OriginalID = x.entries[pos].RecordID
		verdict.Confidence = model.ConfidenceHigh
	}

	pos := len(x.entries)
	x.entries = append(x.entries, model.DuplicateIndexEntry{
		RecordID:    recordID,
		Fingerprint: fp,
		Identifier:  identifier,
		Sender:      sender,
	})
	x.byIdentifier[identifier] = append(x.byIdentifier[identifier], pos)
	x.bySender[sender] = append(x.bySender[sender], pos)

	return verdict
}

// firstMatch returns the earliest position, among entries sharing the
// identifier or the sender, whose fingerprint equals fp; -1 if none. Both
// position lists are ascending, so walking them in merge order visits
// candidates exactly as a front-to-back scan of the index would.
func (x *Index) firstMatch(fp model.Fingerprint, identifier, sender string) int {
	a, b := x.byIdentifier[identifier], x.bySender[sender]
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var pos int
		switch {
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			pos = a[i]
			i++
		case i >= len(a) || b[j] < a[i]:
			pos = b[j]
			j++
		default: // same entry matched on both keys
			pos = a[i]
			i++
			j++
		}
		if x.entries[pos].Fingerprint == fp {
			return pos
		}
	}
	return -1
}

// Entries returns a copy of the index in registration order.
func (x *Index) Entries() []model.DuplicateIndexEntry {
	return append([]model.DuplicateIndexEntry(nil), x.entries...)
}

func (x *Index) Len() int {
	return len(x.entries)
}
