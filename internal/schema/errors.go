package schema

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Compile error codes.
const (
	ErrCodeCUE            = "E201" // CUE evaluation failed
	ErrCodeUnknownBase    = "E202" // base names an undeclared class
	ErrCodeInheritCycle   = "E203" // base chain loops
	ErrCodeUnknownRange   = "E204" // field range is neither primitive nor a class
	ErrCodeDuplicateField = "E205" // field declared twice along a base chain
	ErrCodeBadOrder       = "E206" // order names an unknown or abstract class
	ErrCodeBadInverse     = "E207" // inverse field is functional or lacks via
)

// CompileError represents a class registry compilation error with source position.
type CompileError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: [%s] %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Code:    ErrCodeCUE,
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &CompileError{Code: ErrCodeCUE, Field: "cue", Message: first.Error()}
}
