package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/galactic/internal/codec"
	"github.com/roach88/galactic/internal/ir"
)

// Scenario is a scripted sequence of workspace operations with expected
// outcomes.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Steps run in order against one fresh in-memory workspace.
	Steps []Step `yaml:"steps"`
}

// Step is one operation. Exactly one of Apply, MEL, and Encode is set.
type Step struct {
	Apply  *ApplyStep  `yaml:"apply,omitempty"`
	MEL    *MELStep    `yaml:"mel,omitempty"`
	Encode *EncodeStep `yaml:"encode,omitempty"`

	// Expect is checked against the step's outcome. Nil checks nothing.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Kind names the operation a step performs.
func (s Step) Kind() string {
	switch {
	case s.Apply != nil:
		return KindApply
	case s.MEL != nil:
		return KindMEL
	case s.Encode != nil:
		return KindEncode
	default:
		return ""
	}
}

// Step kinds.
const (
	KindApply  = "apply"
	KindMEL    = "mel"
	KindEncode = "encode"
)

// ApplyStep merges inline records.
type ApplyStep struct {
	// Records is a YAML sequence of flat wire records.
	Records yaml.Node `yaml:"records"`

	Force                bool `yaml:"force,omitempty"`
	NoRecompute          bool `yaml:"no_recompute,omitempty"`
	IncludeReferenceData bool `yaml:"include_reference_data,omitempty"`
}

// Decode returns the step's records. The YAML is re-encoded and read back
// through the batch reader so scenarios accept exactly what batch files do.
func (a *ApplyStep) Decode() ([]ir.Record, error) {
	data, err := yaml.Marshal(&a.Records)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return codec.ReadBatch(bytes.NewReader(data), codec.FormatYAML)
}

// MELStep reconciles the MEL view of a context.
type MELStep struct {
	Context string `yaml:"context"`
	Schema  string `yaml:"schema,omitempty"`
}

// EncodeStep encodes objects.
type EncodeStep struct {
	OIDs                 []string `yaml:"oids"`
	Components           bool     `yaml:"components,omitempty"`
	IncludeReferenceData bool     `yaml:"include_reference_data,omitempty"`
}

// Expect lists the expected outcome of a step. Unset fields are not
// checked.
type Expect struct {
	// Apply classification counts.
	New        *int `yaml:"new,omitempty"`
	Modified   *int `yaml:"modified,omitempty"`
	Unmodified *int `yaml:"unmodified,omitempty"`
	Error      *int `yaml:"error,omitempty"`
	Ignored    *int `yaml:"ignored,omitempty"`

	// Deleted lists ports and flows an apply removed, in any order.
	Deleted []string `yaml:"deleted,omitempty"`

	// Rows is the exact MEL row sequence.
	Rows []ExpectRow `yaml:"rows,omitempty"`

	// Records is the exact sequence of encoded oids.
	Records []string `yaml:"records,omitempty"`

	// Parameters maps oid to parameter id to value, after the step.
	Parameters map[string]map[string]float64 `yaml:"parameters,omitempty"`
}

// ExpectRow describes one MEL row. Only Name is required.
type ExpectRow struct {
	Name     string   `yaml:"name"`
	Level    int      `yaml:"level,omitempty"`
	Quantity *int64   `yaml:"quantity,omitempty"`
	MassCBE  *float64 `yaml:"m_cbe,omitempty"`
}

// LoadScenario reads and validates a scenario file. Unknown keys are
// rejected so a typo cannot silently disable a check.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and step shapes.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		set := 0
		for _, present := range []bool{step.Apply != nil, step.MEL != nil, step.Encode != nil} {
			if present {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one of apply, mel, encode is required", i)
		}
		switch {
		case step.Apply != nil:
			if step.Apply.Records.Kind != yaml.SequenceNode {
				return fmt.Errorf("steps[%d].apply: records must be a sequence", i)
			}
		case step.MEL != nil:
			if step.MEL.Context == "" {
				return fmt.Errorf("steps[%d].mel: context is required", i)
			}
		case step.Encode != nil:
			if len(step.Encode.OIDs) == 0 {
				return fmt.Errorf("steps[%d].encode: oids is required", i)
			}
		}
		if err := validateExpect(i, step); err != nil {
			return err
		}
	}
	return nil
}

// validateExpect rejects expectations that cannot apply to the step kind.
func validateExpect(index int, step Step) error {
	e := step.Expect
	if e == nil {
		return nil
	}
	counts := e.New != nil || e.Modified != nil || e.Unmodified != nil || e.Error != nil || e.Ignored != nil || len(e.Deleted) > 0
	if counts && step.Apply == nil {
		return fmt.Errorf("steps[%d].expect: counts apply only to apply steps", index)
	}
	if len(e.Rows) > 0 && step.MEL == nil {
		return fmt.Errorf("steps[%d].expect: rows apply only to mel steps", index)
	}
	if len(e.Records) > 0 && step.Encode == nil {
		return fmt.Errorf("steps[%d].expect: records apply only to encode steps", index)
	}
	for j, row := range e.Rows {
		if row.Name == "" {
			return fmt.Errorf("steps[%d].expect.rows[%d]: name is required", index, j)
		}
	}
	return nil
}
