package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/galactic/internal/ir"
)

// Summary is the canonical form of a run compared against golden files.
// It holds what each step produced, never timestamps.
func Summary(name string, result *Result) ir.IRObject {
	steps := make(ir.IRArray, 0, len(result.Steps))
	for _, sr := range result.Steps {
		steps = append(steps, stepSummary(sr))
	}
	return ir.IRObject{
		"scenario": ir.IRString(name),
		"pass":     ir.IRBool(result.Pass),
		"steps":    steps,
	}
}

func stepSummary(sr StepResult) ir.IRObject {
	s := ir.IRObject{"kind": ir.IRString(sr.Kind)}
	switch sr.Kind {
	case KindApply:
		for k, n := range sr.Counts {
			s[k] = ir.IRInt(n)
		}
		s["objects"] = stringArray(sr.Objects)
		if len(sr.Deleted) > 0 {
			s["deleted"] = stringArray(sr.Deleted)
		}
		s["recomputed"] = ir.IRBool(sr.Recomputed)
	case KindMEL:
		rep := sr.Report
		rows := make(ir.IRArray, 0, len(rep.Rows))
		for _, r := range rep.Rows {
			rows = append(rows, ir.IRObject{
				"oid":      ir.IRString(r.OID),
				"name":     ir.IRString(r.Name),
				"level":    ir.IRInt(r.Level),
				"quantity": ir.IRInt(r.Quantity),
				"m_cbe":    ir.IRFloat(r.MassCBE),
			})
		}
		s["context"] = ir.IRString(rep.Context)
		s["created"] = ir.IRInt(rep.Created)
		s["reused"] = ir.IRInt(rep.Reused)
		s["purged"] = ir.IRInt(rep.Purged)
		s["rows"] = rows
	case KindEncode:
		s["records"] = stringArray(sr.Records)
	}
	return s
}

func stringArray(ss []string) ir.IRArray {
	arr := make(ir.IRArray, 0, len(ss))
	for _, s := range ss {
		arr = append(arr, ir.IRString(s))
	}
	return arr
}

// RunWithGolden runs scenario and compares its summary with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()
	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()
	data, err := ir.MarshalCanonical(Summary(name, result))
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
