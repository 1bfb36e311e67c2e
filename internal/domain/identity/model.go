package identity

// Mapping is one row of the persistent identity mapping: a source patient
// identifier (e.g. an MRN) paired with its pseudonymous warehouse id. The
// relation is injective in both directions and append-only; the source id
// never leaves the identity store.
type Mapping struct {
	SourceID string `db:"source_id" json:"-"`
	PRWID    string `db:"prw_id" json:"prw_id"`
}
