package merge

import "slices"

// Options controls one Apply call.
type Options struct {
	// IncludeReferenceData applies records whose oid is reference data.
	IncludeReferenceData bool

	// ForceUpdate applies records for existing objects regardless of
	// their mod_datetime.
	ForceUpdate bool

	// SuppressRecompute skips the parameter recompute after the batch.
	SuppressRecompute bool

	// DetailedResult fills Result.Detail.
	DetailedResult bool
}

// Partition classifies the records of a batch.
type Partition struct {
	New        []string `json:"new"`
	Modified   []string `json:"modified"`
	Unmodified []string `json:"unmodified"`
	Error      []string `json:"error"`
}

// Result reports what a batch did.
type Result struct {
	// Objects holds the oids created or updated, in apply order.
	Objects []string `json:"objects"`

	// Deleted holds ports and flows removed from updated products.
	Deleted []string `json:"deleted,omitempty"`

	// Ignored holds the oids of invalid records.
	Ignored []string `json:"ignored"`

	// Detail is set when Options.DetailedResult is.
	Detail *Partition `json:"detail,omitempty"`

	// Issues lists every record-level problem, including the ones that
	// did not stop a record from being applied.
	Issues []*RecordError `json:"-"`

	// Recomputed reports whether parameters were recomputed.
	Recomputed bool `json:"recomputed"`

	partition Partition
	skipped   int
}

// Touched returns the created or updated oids.
func (r *Result) Touched() []string {
	return slices.Clone(r.Objects)
}

// Counts returns the number of records per classification. "ignored"
// counts records dropped before classification: no oid, unknown class, or
// filtered reference data.
func (r *Result) Counts() map[string]int {
	return map[string]int{
		"new":        len(r.partition.New),
		"modified":   len(r.partition.Modified),
		"unmodified": len(r.partition.Unmodified),
		"error":      len(r.partition.Error),
		"ignored":    r.skipped,
	}
}
