package matrix

import "github.com/google/uuid"

// OIDGenerator hands out row entity oids.
type OIDGenerator interface {
	Generate() string
}

// RowOIDPrefix namespaces generated row oids away from graph oids.
const RowOIDPrefix = "row:"

// UUIDv7Generator generates time-sortable row oids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so rows created
// later sort later when listed by oid.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns "row:" followed by a hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return RowOIDPrefix + uuid.Must(uuid.NewV7()).String()
}
