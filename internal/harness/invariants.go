package harness

import (
	"fmt"

	"github.com/roach88/galactic/internal/matrix"
)

// InvariantError is a view that breaks a structural rule.
type InvariantError struct {
	View    string
	Row     string
	Message string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("view %s row %s: %s", e.View, e.Row, e.Message)
}

// CheckView verifies the structural rules every reconciled view keeps.
// Under a given parent row a component appears once, since usages of one
// component are consolidated. A child row follows its parent, and every
// row belongs to the view holding it. Root rows may repeat a system when a
// project uses it more than once.
func CheckView(m *matrix.DataMatrix) []error {
	var errs []error
	seen := map[[2]string]string{}
	for i, row := range m.Rows() {
		fail := func(format string, args ...any) {
			errs = append(errs, &InvariantError{View: m.ID, Row: row.OID, Message: fmt.Sprintf(format, args...)})
		}
		if row.ContainerOID != m.ID {
			fail("container is %q", row.ContainerOID)
		}
		if row.ParentOID == "" {
			continue
		}
		key := [2]string{row.MappedSystemOID, row.ParentOID}
		if other, dup := seen[key]; dup {
			fail("maps %s under %s like row %s", row.MappedSystemOID, row.ParentOID, other)
		}
		seen[key] = row.OID
		switch p := m.Index(row.ParentOID); {
		case p < 0:
			fail("parent %s is not in the view", row.ParentOID)
		case p >= i:
			fail("parent %s at %d does not precede it at %d", row.ParentOID, p, i)
		}
	}
	return errs
}
