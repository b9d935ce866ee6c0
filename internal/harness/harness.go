package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/galactic/internal/codec"
	"github.com/roach88/galactic/internal/mel"
	"github.com/roach88/galactic/internal/merge"
	"github.com/roach88/galactic/internal/testutil"
	"github.com/roach88/galactic/internal/workspace"
)

// Harness runs scenario steps against one workspace.
type Harness struct {
	ws     *workspace.Workspace
	logger *slog.Logger
}

// Run executes scenario in a fresh in-memory workspace with a
// deterministic clock and row oid generator. The returned error is set
// only when the scenario could not run at all; failed expectations are
// reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ws, err := workspace.Open(ctx, workspace.Config{
		Database: ":memory:",
		Logger:   logger,
		Clock:    testutil.NewDeterministicClock().Now,
		RowOIDs:  testutil.NewSequentialOIDGenerator("row"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	defer ws.Close()

	h := &Harness{ws: ws, logger: logger}
	result := NewResult()
	for i, step := range scenario.Steps {
		sr, err := h.runStep(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Kind(), err)
		}
		result.Steps = append(result.Steps, sr)
		for _, msg := range h.check(step, sr) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i, step.Kind(), msg))
		}
	}
	return result, nil
}

func (h *Harness) runStep(ctx context.Context, step Step) (StepResult, error) {
	switch {
	case step.Apply != nil:
		return h.apply(ctx, step.Apply)
	case step.MEL != nil:
		return h.mel(ctx, step.MEL)
	case step.Encode != nil:
		return h.encode(ctx, step.Encode)
	default:
		return StepResult{}, fmt.Errorf("empty step")
	}
}

func (h *Harness) apply(ctx context.Context, a *ApplyStep) (StepResult, error) {
	recs, err := a.Decode()
	if err != nil {
		return StepResult{}, err
	}
	res, err := h.ws.Apply(ctx, recs, merge.Options{
		ForceUpdate:          a.Force,
		SuppressRecompute:    a.NoRecompute,
		IncludeReferenceData: a.IncludeReferenceData,
	})
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{
		Kind:       KindApply,
		Counts:     res.Counts(),
		Objects:    res.Touched(),
		Deleted:    res.Deleted,
		Recomputed: res.Recomputed,
	}, nil
}

func (h *Harness) mel(ctx context.Context, m *MELStep) (StepResult, error) {
	rep, err := h.ws.RecomputeMEL(ctx, m.Context, mel.Options{SchemaName: m.Schema})
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{Kind: KindMEL, Report: rep}, nil
}

func (h *Harness) encode(ctx context.Context, e *EncodeStep) (StepResult, error) {
	recs, err := h.ws.Encode(ctx, e.OIDs, codec.Options{
		IncludeComponents:    e.Components,
		IncludeReferenceData: e.IncludeReferenceData,
	})
	if err != nil {
		return StepResult{}, err
	}
	oids := make([]string, 0, len(recs))
	for _, rec := range recs {
		oids = append(oids, rec.OID)
	}
	return StepResult{Kind: KindEncode, Records: oids}, nil
}
