package store

// ObjectRow is one persisted object: its canonical JSON record and the
// columns needed to query it without decoding.
type ObjectRow struct {
	OID         string
	ClassName   string
	ModDatetime string
	Body        string // canonical JSON of the flat record
}

// ParameterRow is one cached parameter value.
type ParameterRow struct {
	OID         string
	PID         string
	Value       float64
	Units       string
	ModDatetime string
}

// DataElementRow is one cached data element value. Value is canonical JSON
// so that any primitive survives the round trip.
type DataElementRow struct {
	OID         string
	DEID        string
	Value       string
	ModDatetime string
}

// ValueSet replaces every cached value of one oid.
type ValueSet struct {
	OID          string
	Parameters   []ParameterRow
	DataElements []DataElementRow
}

// Batch is the unit of atomic persistence for one merge: object upserts and
// deletes plus the value sets of every oid whose values changed.
type Batch struct {
	Upserts []ObjectRow
	Deletes []string
	Values  []ValueSet

	// PurgeValues drops every cached value of these oids.
	PurgeValues []string
}

// Empty reports whether the batch has nothing to write.
func (b Batch) Empty() bool {
	return len(b.Upserts) == 0 && len(b.Deletes) == 0 && len(b.Values) == 0 && len(b.PurgeValues) == 0
}

// ViewRow is a persisted flattened view with its ordered rows.
type ViewRow struct {
	ID              string
	OwnerContextOID string
	EntityKind      string
	SchemaName      string
	Columns         []string
	Creator         string
	Modifier        string
	CreateDatetime  string
	ModDatetime     string
	Rows            []EntityRow
}

// EntityRow is a persisted row entity. Its position is its index in the
// owning ViewRow's Rows.
type EntityRow struct {
	OID             string
	ParentOID       string
	MappedSystemOID string
	Name            string
	Owner           string
	Creator         string
	Modifier        string
	CreateDatetime  string
	ModDatetime     string
}

// HistoryRow is one undo snapshot of a row entity, ordered by Seq.
type HistoryRow struct {
	OID      string
	Seq      int64
	Snapshot string // JSON
}
