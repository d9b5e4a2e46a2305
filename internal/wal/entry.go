package wal

import (
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/namankumar80510/dikkidb/internal/docmodel"
)

// Operation names the kind of mutation a WAL entry records.
type Operation string

const (
	OpPut    Operation = "PUT"
	OpDelete Operation = "DELETE"
)

// Entry is one logged mutation: {timestamp, operation, id, data, checksum}.
// A batch is an ordered, non-empty list of entries serialized as one line.
type Entry struct {
	Timestamp float64         `json:"timestamp"`
	Operation Operation       `json:"operation"`
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	Checksum  string          `json:"checksum"`
}

// newEntry builds an entry for the given operation and stamps its checksum.
// data may be nil (DELETE, or a PUT of a nil document); nil encodes as null.
func newEntry(ts float64, op Operation, id string, data docmodel.Document) (Entry, error) {
	raw, err := docmodel.Encode(data)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		Timestamp: ts,
		Operation: op,
		ID:        id,
		Data:      raw,
	}
	e.Checksum = checksum(e.Timestamp, e.Operation, e.ID, e.Data)
	return e, nil
}

// checksum computes a stable 64-bit hash over timestamp || operation || id
// || data, formatted as lowercase hex. It's recomputed at replay time with
// the checksum field itself excluded, so a single torn byte anywhere in the
// line is caught.
func checksum(ts float64, op Operation, id string, data []byte) string {
	h := xxhash.New()
	h.Write([]byte(strconv.FormatFloat(ts, 'f', -1, 64)))
	h.Write([]byte(op))
	h.Write([]byte(id))
	h.Write(data)
	return strconv.FormatUint(h.Sum64(), 16)
}

// verify reports whether e's stored checksum matches one recomputed from
// its fields.
func (e Entry) verify() bool {
	return e.Checksum == checksum(e.Timestamp, e.Operation, e.ID, e.Data)
}

// Document decodes the entry's raw payload. A null payload (DELETE entries,
// or a PUT of a nil document) decodes to a nil Document; a PUT of an empty
// document decodes to an empty, non-nil one.
func (e Entry) Document() (docmodel.Document, error) {
	return docmodel.Decode(e.Data)
}

// batch is the line-delimited unit written to a segment: a JSON array of
// entries followed by a newline.
func encodeBatch(entries []Entry) ([]byte, error) {
	line, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

func decodeBatch(line []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(line, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
