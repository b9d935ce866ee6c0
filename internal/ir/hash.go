package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for derived identities.
// Version suffix enables future algorithm migration.
const (
	DomainView  = "galactic/view/v1"
	DomainBatch = "galactic/batch/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ViewID computes the identity of a flattened view from the context it is
// about and the kind of entity its rows represent. The same pair always
// yields the same id, which is what makes view construction replace rather
// than duplicate.
func ViewID(ownerContextOID, entityKind string) string {
	obj := IRObject{
		"owner_context_oid": IRString(ownerContextOID),
		"entity_kind":       IRString(entityKind),
	}
	// Only strings: canonical marshaling cannot fail here.
	canonical, _ := MarshalCanonical(obj)
	return "dm-" + hashWithDomain(DomainView, canonical)[:32]
}

// BatchDigest computes a content digest for a batch of records.
// Used to correlate log lines and metrics for one apply call.
func BatchDigest(records []Record) (string, error) {
	canonical, err := MarshalCanonical(records)
	if err != nil {
		return "", fmt.Errorf("BatchDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainBatch, canonical), nil
}
