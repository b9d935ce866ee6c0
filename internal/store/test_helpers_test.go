package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testObject(oid, class string) ObjectRow {
	return ObjectRow{
		OID:         oid,
		ClassName:   class,
		ModDatetime: "2024-01-02T03:04:05.000000Z",
		Body:        `{"_cname":"` + class + `","oid":"` + oid + `"}`,
	}
}

func testView(id, ctx, kind string, rowOIDs ...string) ViewRow {
	v := ViewRow{
		ID:              id,
		OwnerContextOID: ctx,
		EntityKind:      kind,
		SchemaName:      "MEL",
		Columns:         []string{"name", "m_cbe"},
		Creator:         "pgefobjects:admin",
		ModDatetime:     "2024-01-02T03:04:05.000000Z",
	}
	for _, oid := range rowOIDs {
		v.Rows = append(v.Rows, EntityRow{OID: oid, Name: oid, MappedSystemOID: "sys:" + oid})
	}
	return v
}
