package store

import "encoding/json"

// structToMap and mapToStruct convert between a Document and the
// map[string]any row shape Memory and the Postgres jsonb column both use.
// Conversion is done via JSON marshal/unmarshal to honor each field's own
// json tag — the same tag the Postgres store's generated columns key off
// of — so callers never keep a duplicate encoding scheme per backend.

func structToMap(doc Document) map[string]any {
	raw, err := json.Marshal(doc)
	if err != nil {
		// doc is always a plain struct of JSON-marshalable fields; a
		// marshal failure here means a model added a non-marshalable
		// field type, a programmer error caught immediately in tests.
		panic("store: document not JSON-marshalable: " + err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		panic("store: document round-trip failed: " + err.Error())
	}
	return m
}

func mapToStruct(row map[string]any, out Document) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
