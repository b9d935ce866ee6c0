package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// AssertionError describes one failed expectation.
type AssertionError struct {
	What     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.What, e.Expected, e.Actual)
}

// check compares a step's outcome with its expectations and runs the view
// invariants after every mel step.
func (h *Harness) check(step Step, sr StepResult) []string {
	var errs []error
	if e := step.Expect; e != nil {
		errs = append(errs, checkCounts(e, sr)...)
		errs = append(errs, checkRows(e, sr)...)
		errs = append(errs, checkRecords(e, sr)...)
		errs = append(errs, h.checkParameters(e)...)
	}
	if sr.Kind == KindMEL && sr.Report.ViewID != "" {
		if m, ok := h.ws.View(sr.Report.Context, ""); ok {
			errs = append(errs, CheckView(m)...)
		}
	}

	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

func checkCounts(e *Expect, sr StepResult) []error {
	var errs []error
	for _, c := range []struct {
		name string
		want *int
	}{
		{"new", e.New},
		{"modified", e.Modified},
		{"unmodified", e.Unmodified},
		{"error", e.Error},
		{"ignored", e.Ignored},
	} {
		if c.want == nil {
			continue
		}
		if got := sr.Counts[c.name]; got != *c.want {
			errs = append(errs, &AssertionError{
				What:     c.name + " count",
				Expected: fmt.Sprint(*c.want),
				Actual:   fmt.Sprint(got),
			})
		}
	}
	if len(e.Deleted) > 0 {
		want := slices.Sorted(slices.Values(e.Deleted))
		got := slices.Sorted(slices.Values(sr.Deleted))
		if !slices.Equal(want, got) {
			errs = append(errs, &AssertionError{What: "deleted", Expected: fmt.Sprint(want), Actual: fmt.Sprint(got)})
		}
	}
	return errs
}

func checkRows(e *Expect, sr StepResult) []error {
	if len(e.Rows) == 0 || sr.Report == nil {
		return nil
	}
	rows := sr.Report.Rows
	if len(rows) != len(e.Rows) {
		names := make([]string, 0, len(rows))
		for _, r := range rows {
			names = append(names, r.Name)
		}
		return []error{&AssertionError{
			What:     "rows",
			Expected: fmt.Sprintf("%d rows", len(e.Rows)),
			Actual:   fmt.Sprintf("%d rows [%s]", len(rows), strings.Join(names, ", ")),
		}}
	}
	var errs []error
	for i, want := range e.Rows {
		got := rows[i]
		what := fmt.Sprintf("rows[%d]", i)
		if got.Name != want.Name {
			errs = append(errs, &AssertionError{What: what + ".name", Expected: want.Name, Actual: got.Name})
		}
		if want.Level != 0 && got.Level != want.Level {
			errs = append(errs, &AssertionError{What: what + ".level", Expected: fmt.Sprint(want.Level), Actual: fmt.Sprint(got.Level)})
		}
		if want.Quantity != nil && got.Quantity != *want.Quantity {
			errs = append(errs, &AssertionError{What: what + ".quantity", Expected: fmt.Sprint(*want.Quantity), Actual: fmt.Sprint(got.Quantity)})
		}
		if want.MassCBE != nil && got.MassCBE != *want.MassCBE {
			errs = append(errs, &AssertionError{What: what + ".m_cbe", Expected: fmt.Sprint(*want.MassCBE), Actual: fmt.Sprint(got.MassCBE)})
		}
	}
	return errs
}

func checkRecords(e *Expect, sr StepResult) []error {
	if len(e.Records) == 0 {
		return nil
	}
	if !slices.Equal(e.Records, sr.Records) {
		return []error{&AssertionError{What: "records", Expected: fmt.Sprint(e.Records), Actual: fmt.Sprint(sr.Records)}}
	}
	return nil
}

func (h *Harness) checkParameters(e *Expect) []error {
	var errs []error
	for _, oid := range slices.Sorted(maps.Keys(e.Parameters)) {
		params := e.Parameters[oid]
		for _, pid := range slices.Sorted(maps.Keys(params)) {
			want := params[pid]
			if got := h.ws.Parameter(oid, pid); got != want {
				errs = append(errs, &AssertionError{
					What:     fmt.Sprintf("parameter %s of %s", pid, oid),
					Expected: fmt.Sprint(want),
					Actual:   fmt.Sprint(got),
				})
			}
		}
	}
	return errs
}
