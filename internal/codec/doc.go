// Package codec turns live objects into canonical records and moves record
// batches in and out of files.
//
// Encoding walks the requested objects plus the related objects their
// class behaviour always drags along (see package kind). Each oid is
// encoded at most once per pass; an oid requested twice keeps its first
// position and the content of its last encoding. Reference-data oids are
// dropped from the output unless explicitly requested.
//
// Batch files are JSON arrays of flat records, or YAML sequences of the
// same shape.
package codec
