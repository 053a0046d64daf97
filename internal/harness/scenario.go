package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/configstore/internal/model"
)

// Scenario is a sequence of store rewrites, each followed by a scan.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Types restricts the scans to these entity types. Empty means all.
	Types []model.EntityType `yaml:"types,omitempty"`

	Scans []ScanStep `yaml:"scans"`
}

// ScanStep changes the store and scans it once.
type ScanStep struct {
	Name string `yaml:"name,omitempty"`

	// Items replaces the whole store. Applied before Put and Delete.
	Items map[string]string `yaml:"items,omitempty"`
	Put   map[string]string `yaml:"put,omitempty"`
	// Delete removes keys.
	Delete []string `yaml:"delete,omitempty"`

	// Expect lists the deltas of this scan in order. Empty means none.
	Expect []ExpectedDelta `yaml:"expect,omitempty"`

	// ExpectEntities lists the ids of the snapshot after this scan.
	ExpectEntities []string `yaml:"expect_entities,omitempty"`

	// ExpectError is the error code that ends the stream at this scan.
	ExpectError model.ErrorCode `yaml:"expect_error,omitempty"`
}

// ExpectedDelta matches one delta. A nil Patch matches any patch.
type ExpectedDelta struct {
	Change model.ChangeType `yaml:"change"`
	ID     string           `yaml:"id"`
	Patch  *int             `yaml:"patch,omitempty"`
}

func (d ExpectedDelta) String() string {
	if d.Patch == nil {
		return fmt.Sprintf("%s %s", d.Change, d.ID)
	}
	return fmt.Sprintf("%s %s patch=%d", d.Change, d.ID, *d.Patch)
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
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

var (
	changeTypes = []model.ChangeType{model.ChangeAdd, model.ChangeUpdate, model.ChangeDelete}
	errorCodes  = []model.ErrorCode{
		model.ErrCodeOrderingViolation, model.ErrCodeVersionChain, model.ErrCodeMalformedNamespace,
		model.ErrCodeUnexpectedGroup, model.ErrCodeBusiness, model.ErrCodeTagMismatch,
	}
)

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Scans) == 0 {
		return fmt.Errorf("scans list is required and must be non-empty")
	}
	for _, t := range s.Types {
		if _, err := model.ParseEntityType(string(t)); err != nil {
			return fmt.Errorf("types: %w", err)
		}
	}

	for i, step := range s.Scans {
		for j, d := range step.Expect {
			if !slices.Contains(changeTypes, d.Change) {
				return fmt.Errorf("scans[%d].expect[%d]: unknown change %q", i, j, d.Change)
			}
			if d.ID == "" {
				return fmt.Errorf("scans[%d].expect[%d]: id is required", i, j)
			}
		}
		if step.ExpectError == "" {
			continue
		}
		if !slices.Contains(errorCodes, step.ExpectError) {
			return fmt.Errorf("scans[%d]: unknown error code %q", i, step.ExpectError)
		}
		if i != len(s.Scans)-1 {
			return fmt.Errorf("scans[%d]: expect_error ends the stream and must be on the last scan", i)
		}
		if len(step.Expect) > 0 || len(step.ExpectEntities) > 0 {
			return fmt.Errorf("scans[%d]: expect_error cannot be combined with expect or expect_entities", i)
		}
	}
	return nil
}
