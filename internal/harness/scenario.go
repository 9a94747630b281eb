package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/barryels/Spark/internal/ir"
)

// Scenario is a sequence of library operations with expected outcomes.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Objects seeds the three tables before the flow runs.
	Objects Objects `yaml:"objects"`

	Flow       []Step      `yaml:"flow"`
	Assertions []Assertion `yaml:"assertions"`
}

// Objects lists seeded objects by id per space.
type Objects struct {
	Actions      map[ir.ActionID]ir.Object      `yaml:"actions,omitempty"`
	Triggers     map[ir.TriggerID]ir.Object     `yaml:"triggers,omitempty"`
	Applications map[ir.ApplicationID]ir.Object `yaml:"applications,omitempty"`
}

// Step is one operation of the flow.
type Step struct {
	Op string `yaml:"op"`

	Entry       *ir.Entry        `yaml:"entry,omitempty"`
	Replacement *ir.Entry        `yaml:"replacement,omitempty"`
	Entries     []ir.Entry       `yaml:"entries,omitempty"`
	Trigger     ir.TriggerID     `yaml:"trigger,omitempty"`
	Application ir.ApplicationID `yaml:"application,omitempty"`
	Space       ir.Space         `yaml:"space,omitempty"`
	ID          uint32           `yaml:"id,omitempty"`

	// Expect is the expected case; empty means "ok".
	Expect string `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpAddEntry         = "add_entry"
	OpReplaceEntry     = "replace_entry"
	OpRemoveEntry      = "remove_entry"
	OpRemoveTrigger    = "remove_trigger"
	OpRemoveAllEntries = "remove_all_entries"
	OpAddEntries       = "add_entries"
	OpRemoveObject     = "remove_object"
	OpQuery            = "query"
	OpReload           = "reload"
)

// Assertion validates the final library state.
type Assertion struct {
	Type string `yaml:"type"`

	Count       int                          `yaml:"count,omitempty"`
	Application ir.ApplicationID             `yaml:"application,omitempty"`
	Bindings    map[ir.TriggerID]ir.ActionID `yaml:"expect,omitempty"`
	Entry       *ir.Entry                    `yaml:"entry,omitempty"`
	Trigger     ir.TriggerID                 `yaml:"trigger,omitempty"`
}

// Assertion types.
const (
	AssertCount    = "count"
	AssertBindings = "bindings"
	AssertBound    = "bound"
	AssertUnbound  = "unbound"
)

var validCases = map[string]bool{
	"": true, CaseOK: true, CaseConflict: true, CaseNotFound: true,
	CaseLoadError: true, CaseSaveError: true, CaseError: true,
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML: empty document")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, st *Step) error {
	if !validCases[st.Expect] {
		return fmt.Errorf("flow[%d]: unknown expect case %q", i, st.Expect)
	}
	switch st.Op {
	case OpAddEntry, OpRemoveEntry:
		if st.Entry == nil {
			return fmt.Errorf("flow[%d]: entry is required for %s", i, st.Op)
		}
	case OpReplaceEntry:
		if st.Entry == nil || st.Replacement == nil {
			return fmt.Errorf("flow[%d]: entry and replacement are required for %s", i, st.Op)
		}
	case OpAddEntries:
		if len(st.Entries) == 0 {
			return fmt.Errorf("flow[%d]: entries are required for %s", i, st.Op)
		}
	case OpRemoveTrigger:
		if st.Trigger == 0 {
			return fmt.Errorf("flow[%d]: trigger is required for %s", i, st.Op)
		}
	case OpRemoveObject:
		if !ir.ValidSpaces[st.Space] || st.ID == 0 {
			return fmt.Errorf("flow[%d]: space and id are required for %s", i, st.Op)
		}
	case OpRemoveAllEntries, OpQuery, OpReload:
	case "":
		return fmt.Errorf("flow[%d]: op is required", i)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", i, st.Op)
	}
	return nil
}

func validateAssertion(i int, a *Assertion) error {
	switch a.Type {
	case AssertCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", i)
		}
	case AssertBindings:
		if a.Bindings == nil {
			return fmt.Errorf("assertions[%d]: expect is required for bindings", i)
		}
	case AssertBound:
		if a.Entry == nil {
			return fmt.Errorf("assertions[%d]: entry is required for bound", i)
		}
	case AssertUnbound:
		if a.Trigger == 0 {
			return fmt.Errorf("assertions[%d]: trigger is required for unbound", i)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}
