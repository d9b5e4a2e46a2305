// Package docmodel defines the document value type shared by the wal,
// storage and dikkidb packages. It exists as its own leaf package so that
// wal and storage can agree on a wire representation without importing one
// another.
package docmodel

import "encoding/json"

// Document is an opaque, structured payload: a nested key/value tree with
// string keys and scalar/array/object leaves. The store never inspects its
// fields; it only encodes and decodes the whole value.
type Document = map[string]interface{}

// Encode renders a Document (or nil, for a DELETE entry) as canonical JSON
// bytes. nil encodes as the literal "null".
func Encode(d Document) ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d)
}

// Decode parses raw JSON bytes into a Document. A "null" payload decodes to
// a nil Document.
func Decode(raw []byte) (Document, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}
