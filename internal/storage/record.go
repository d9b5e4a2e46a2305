package storage

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/namankumar80510/dikkidb/internal/docmodel"
)

// Record is the on-disk unit stored in data.db: a DocumentId, an opaque
// revision tag, and the caller's payload.
type Record struct {
	ID       string            `json:"_id"`
	Revision string            `json:"_rev"`
	Data     docmodel.Document `json:"data"`
}

// newRevision mints a short opaque revision tag. Uniqueness is best-effort
// and never relied on for correctness — it exists so callers can tell two
// writes of the same id apart, nothing more.
func newRevision() string {
	return uuid.NewString()
}

// encodeRecord serializes r as a single line: JSON object followed by a
// newline. Newline must never appear inside the object itself, which
// encoding/json already guarantees for the set of value types a Document
// can hold.
func encodeRecord(r Record) ([]byte, error) {
	line, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

// decodeRecord parses a single line (without its trailing newline) back
// into a Record.
func decodeRecord(line []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(line, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}
