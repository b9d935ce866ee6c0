package merge

import (
	"errors"
	"fmt"
)

// RecordErrorCode categorizes record-level failures.
type RecordErrorCode string

const (
	// ErrCodeMalformedRecord marks a record without an oid, or whose
	// class does not match the stored object of the same oid.
	ErrCodeMalformedRecord RecordErrorCode = "MALFORMED_RECORD"

	// ErrCodeUnknownType marks a record whose class is missing or not
	// recognized by the registry.
	ErrCodeUnknownType RecordErrorCode = "UNKNOWN_TYPE"

	// ErrCodeInvalidRelationship marks a record with an unresolvable
	// required reference, or a legacy Flow that cannot be repaired.
	ErrCodeInvalidRelationship RecordErrorCode = "INVALID_RELATIONSHIP"

	// ErrCodeStale marks a record not newer than the stored object.
	ErrCodeStale RecordErrorCode = "STALE"

	// ErrCodeDecodeFallback marks a field whose value could not be decoded
	// and was replaced by a sentinel. The record is still applied.
	ErrCodeDecodeFallback RecordErrorCode = "DECODE_FALLBACK"
)

// RecordError describes why one record was skipped or only partly
// decoded. Record errors never abort a batch; they are collected in
// Result.Issues.
type RecordError struct {
	// Code identifies the error category.
	Code RecordErrorCode

	// Index is the record's position in the submitted batch.
	Index int

	OID       string
	ClassName string

	// Field names the offending field, when there is one.
	Field string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	switch {
	case e.OID != "" && e.Field != "":
		return fmt.Sprintf("%s: %s (oid=%s, field=%s)", e.Code, e.Message, e.OID, e.Field)
	case e.OID != "":
		return fmt.Sprintf("%s: %s (oid=%s)", e.Code, e.Message, e.OID)
	default:
		return fmt.Sprintf("%s: %s (record %d)", e.Code, e.Message, e.Index)
	}
}

func hasCode(err error, code RecordErrorCode) bool {
	var re *RecordError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsInvalidError reports whether err is an invalid relationship error.
// Uses errors.As to handle wrapped errors.
func IsInvalidError(err error) bool {
	return hasCode(err, ErrCodeInvalidRelationship)
}

// IsStaleError reports whether err is a stale record error.
func IsStaleError(err error) bool {
	return hasCode(err, ErrCodeStale)
}

// IsUnknownTypeError reports whether err is an unknown type error.
func IsUnknownTypeError(err error) bool {
	return hasCode(err, ErrCodeUnknownType)
}

// IsMalformedError reports whether err is a malformed record error.
func IsMalformedError(err error) bool {
	return hasCode(err, ErrCodeMalformedRecord)
}

// IsDecodeFallback reports whether err is a decode fallback notice.
func IsDecodeFallback(err error) bool {
	return hasCode(err, ErrCodeDecodeFallback)
}

func newMalformed(index int, oid, cname, msg string) *RecordError {
	return &RecordError{Code: ErrCodeMalformedRecord, Index: index, OID: oid, ClassName: cname, Message: msg}
}

func newUnknownType(index int, oid, cname string) *RecordError {
	msg := "record has no class name"
	if cname != "" {
		msg = fmt.Sprintf("class %q is not recognized", cname)
	}
	return &RecordError{Code: ErrCodeUnknownType, Index: index, OID: oid, ClassName: cname, Message: msg}
}

func newInvalid(index int, oid, cname, field, msg string) *RecordError {
	return &RecordError{Code: ErrCodeInvalidRelationship, Index: index, OID: oid, ClassName: cname, Field: field, Message: msg}
}

func newStale(index int, oid, cname, msg string) *RecordError {
	return &RecordError{Code: ErrCodeStale, Index: index, OID: oid, ClassName: cname, Message: msg}
}

func newFallback(index int, oid, cname, field string) *RecordError {
	return &RecordError{
		Code: ErrCodeDecodeFallback, Index: index, OID: oid, ClassName: cname, Field: field,
		Message: "value could not be decoded; sentinel substituted",
	}
}
