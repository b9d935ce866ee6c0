package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func TestCommit_UpsertAndDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Commit(ctx, Batch{Upserts: []ObjectRow{
		testObject("test:b", "HardwareProduct"),
		testObject("test:a", "Project"),
	}})
	if err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	updated := testObject("test:b", "HardwareProduct")
	updated.Body = `{"_cname":"HardwareProduct","name":"Bus","oid":"test:b"}`
	err = s.Commit(ctx, Batch{
		Upserts: []ObjectRow{updated},
		Deletes: []string{"test:a"},
	})
	if err != nil {
		t.Fatalf("second Commit() failed: %v", err)
	}

	objects, err := s.LoadObjects(ctx)
	if err != nil {
		t.Fatalf("LoadObjects() failed: %v", err)
	}
	if len(objects) != 1 {
		t.Fatalf("LoadObjects() returned %d objects, want 1", len(objects))
	}
	if objects[0].Body != updated.Body {
		t.Errorf("body = %q, want %q", objects[0].Body, updated.Body)
	}
}

func TestCommit_EmptyBatchIsNoop(t *testing.T) {
	s := createTestStore(t)
	if err := s.Commit(context.Background(), Batch{}); err != nil {
		t.Fatalf("Commit(empty) failed: %v", err)
	}
}

func TestCommit_Atomic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	err := s.Commit(cctx, Batch{Upserts: []ObjectRow{testObject("test:a", "Project")}})
	if err == nil {
		t.Fatal("Commit() with cancelled context should fail")
	}

	objects, err := s.LoadObjects(ctx)
	if err != nil {
		t.Fatalf("LoadObjects() failed: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("failed commit left %d objects behind", len(objects))
	}
}

func TestCommit_ValuesReplacePerOID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := ValueSet{
		OID: "test:bus",
		Parameters: []ParameterRow{
			{PID: "m", Value: 12.5, Units: "kg", ModDatetime: "2024-01-01T00:00:00.000000Z"},
			{PID: "P", Value: 3, Units: "W"},
		},
		DataElements: []DataElementRow{{DEID: "Vendor", Value: `"Acme"`}},
	}
	if err := s.Commit(ctx, Batch{Values: []ValueSet{first}}); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	second := ValueSet{
		OID:        "test:bus",
		Parameters: []ParameterRow{{PID: "m", Value: 13, Units: "kg"}},
	}
	if err := s.Commit(ctx, Batch{Values: []ValueSet{second}}); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	sets, err := s.LoadValues(ctx)
	if err != nil {
		t.Fatalf("LoadValues() failed: %v", err)
	}
	if len(sets) != 1 {
		t.Fatalf("LoadValues() returned %d sets, want 1", len(sets))
	}
	if len(sets[0].Parameters) != 1 || sets[0].Parameters[0].Value != 13 {
		t.Errorf("parameters = %+v, want only m=13", sets[0].Parameters)
	}
	if len(sets[0].DataElements) != 0 {
		t.Errorf("data elements = %+v, want none", sets[0].DataElements)
	}
}

func TestCommit_PurgeValues(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	vs := ValueSet{OID: "test:bus", Parameters: []ParameterRow{{PID: "m", Value: 1}}}
	if err := s.Commit(ctx, Batch{Values: []ValueSet{vs}}); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if err := s.Commit(ctx, Batch{PurgeValues: []string{"test:bus"}}); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	sets, err := s.LoadValues(ctx)
	if err != nil {
		t.Fatalf("LoadValues() failed: %v", err)
	}
	if len(sets) != 0 {
		t.Errorf("LoadValues() = %+v, want empty", sets)
	}
}

func TestSaveViews_ReplacesAll(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	v1 := testView("dm-1", "proj:1", "HardwareProduct", "row:a", "row:b")
	history := []HistoryRow{{OID: "row:a", Seq: 1, Snapshot: `{"name":"a"}`}}
	if err := s.SaveViews(ctx, []ViewRow{v1}, history, Batch{}); err != nil {
		t.Fatalf("SaveViews() failed: %v", err)
	}

	v2 := testView("dm-2", "proj:2", "HardwareProduct", "row:c")
	if err := s.SaveViews(ctx, []ViewRow{v2}, nil, Batch{}); err != nil {
		t.Fatalf("SaveViews() failed: %v", err)
	}

	views, err := s.LoadViews(ctx)
	if err != nil {
		t.Fatalf("LoadViews() failed: %v", err)
	}
	if len(views) != 1 || views[0].ID != "dm-2" {
		t.Fatalf("LoadViews() = %+v, want only dm-2", views)
	}
	if len(views[0].Rows) != 1 || views[0].Rows[0].OID != "row:c" {
		t.Errorf("rows = %+v, want row:c", views[0].Rows)
	}

	hist, err := s.LoadHistory(ctx)
	if err != nil {
		t.Fatalf("LoadHistory() failed: %v", err)
	}
	if len(hist) != 0 {
		t.Errorf("LoadHistory() = %+v, want empty", hist)
	}
}

func TestSaveViews_WritesValues(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.Commit(ctx, Batch{Values: []ValueSet{
		{OID: "row:stale", Parameters: []ParameterRow{{PID: "m_cbe", Value: 1}}},
	}}); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	v := testView("dm-1", "proj:1", "HardwareProduct", "row:a")
	vals := Batch{
		Values:      []ValueSet{{OID: "row:a", Parameters: []ParameterRow{{PID: "m_cbe", Value: 2}}}},
		PurgeValues: []string{"row:stale"},
	}
	if err := s.SaveViews(ctx, []ViewRow{v}, nil, vals); err != nil {
		t.Fatalf("SaveViews() failed: %v", err)
	}

	sets, err := s.LoadValues(ctx)
	if err != nil {
		t.Fatalf("LoadValues() failed: %v", err)
	}
	if len(sets) != 1 || sets[0].OID != "row:a" {
		t.Errorf("LoadValues() = %+v, want only row:a", sets)
	}
}

func TestSaveViews_FailureWritesNothing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// row:a in two views violates the row primary key after the values
	// have been written.
	views := []ViewRow{
		testView("dm-1", "proj:1", "HardwareProduct", "row:a"),
		testView("dm-2", "proj:2", "HardwareProduct", "row:a"),
	}
	vals := Batch{Values: []ValueSet{{OID: "row:a", Parameters: []ParameterRow{{PID: "m_cbe", Value: 2}}}}}
	if err := s.SaveViews(ctx, views, nil, vals); err == nil {
		t.Fatal("SaveViews() succeeded with a duplicate row oid")
	}

	sets, err := s.LoadValues(ctx)
	if err != nil {
		t.Fatalf("LoadValues() failed: %v", err)
	}
	if len(sets) != 0 {
		t.Errorf("values after failed save = %+v, want none", sets)
	}
	loaded, err := s.LoadViews(ctx)
	if err != nil {
		t.Fatalf("LoadViews() failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("views after failed save = %+v, want none", loaded)
	}
}

func TestLoadObject_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.LoadObject(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("LoadObject(missing) error = %v, want sql.ErrNoRows", err)
	}
}
