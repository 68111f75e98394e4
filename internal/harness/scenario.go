package harness

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/seqx/internal/driver"
)

//go:embed schema.cue
var schemaCUE string

// DefaultTimeout bounds a scenario run when timeout_ms is not set.
const DefaultTimeout = 2 * time.Second

// Scenario describes producers, a driver, and what the run must show.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Capacities. 0 means unbounded.
	RequestCapacity  int `yaml:"request_capacity,omitempty"`
	ResponseCapacity int `yaml:"response_capacity,omitempty"`
	QueueCapacity    int `yaml:"queue_capacity,omitempty"`

	TimeoutMS int `yaml:"timeout_ms,omitempty"`

	// Stagger launches sequences in declaration order, each after the
	// previous one queued its first item, and holds the driver back until
	// every sequence has been launched. Arrival order is then deterministic.
	Stagger bool `yaml:"stagger,omitempty"`

	Driver     DriverSpec     `yaml:"driver,omitempty"`
	Sequences  []SequenceSpec `yaml:"sequences"`
	Assertions []Assertion    `yaml:"assertions"`
}

// DriverSpec configures the scenario's driver.
type DriverSpec struct {
	// Respond is item_done (default), put, or none.
	Respond string `yaml:"respond,omitempty"`
}

// SequenceSpec is one producer.
type SequenceSpec struct {
	Name    string `yaml:"name"`
	Virtual bool   `yaml:"virtual,omitempty"`

	// Responses is by_id (default: one get_response after each item),
	// fifo (collect all responses oldest first after the last item), or none.
	Responses string     `yaml:"responses,omitempty"`
	Items     []ItemSpec `yaml:"items,omitempty"`
}

// ItemSpec is one request. The driver answers with a+b.
type ItemSpec struct {
	Name string `yaml:"name"`
	A    int    `yaml:"a,omitempty"`
	B    int    `yaml:"b,omitempty"`

	// DuplicateResponse makes the driver store a second response for the
	// same request.
	DuplicateResponse bool `yaml:"duplicate_response,omitempty"`
}

// Assertion checks one property of a finished run.
type Assertion struct {
	Type      string   `yaml:"type"`
	Items     []string `yaml:"items,omitempty"`
	Count     int      `yaml:"count,omitempty"`
	Sequences []string `yaml:"sequences,omitempty"`
	Sequence  string   `yaml:"sequence,omitempty"`
	Code      string   `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertFetchOrder       = "fetch_order"
	AssertFetchCount       = "fetch_count"
	AssertSequenceOrder    = "sequence_order"
	AssertResponsesMatched = "responses_matched"
	AssertSequenceError    = "sequence_error"
)

// Response retrieval modes.
const (
	ResponsesByID = "by_id"
	ResponsesFIFO = "fifo"
	ResponsesNone = "none"
)

// Timeout returns the run deadline.
func (s *Scenario) Timeout() time.Duration {
	if s.TimeoutMS <= 0 {
		return DefaultTimeout
	}
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// LoadScenario reads, schema-checks and decodes a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario validates data against the CUE schema, then decodes it with
// strict field checking and applies the cross-field rules.
func ParseScenario(data []byte) (*Scenario, error) {
	if err := validateSchema(data); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

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

// validateSchema unifies the document with #Scenario.
func validateSchema(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("empty scenario")
	}

	cctx := cuecontext.New()
	schema := cctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Scenario"))
	v := def.Unify(cctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema: %s", cueerrors.Details(err, nil))
	}
	return nil
}

// validateScenario checks rules that span fields.
func validateScenario(s *Scenario) error {
	mode, err := driver.ParseResponseMode(s.Driver.Respond)
	if err != nil {
		return fmt.Errorf("driver: %w", err)
	}

	names := make(map[string]bool, len(s.Sequences))
	collectors, fifo := 0, -1
	for i, seq := range s.Sequences {
		if names[seq.Name] {
			return fmt.Errorf("sequences[%d]: duplicate name %q", i, seq.Name)
		}
		names[seq.Name] = true

		if seq.collects() {
			collectors++
			if seq.responseMode() == ResponsesFIFO && fifo < 0 {
				fifo = i
			}
		}

		if mode == driver.RespondNone && seq.collects() {
			return fmt.Errorf("sequences[%d]: driver never responds, set responses: none", i)
		}
		for j, item := range seq.Items {
			if item.DuplicateResponse && mode != driver.RespondInItemDone {
				return fmt.Errorf("sequences[%d].items[%d]: duplicate_response needs driver respond: item_done", i, j)
			}
		}
	}

	// A fifo collector takes the oldest response in the shared store, which
	// may belong to another sequence.
	if fifo >= 0 && collectors > 1 {
		return fmt.Errorf("sequences[%d]: responses: fifo must be the only sequence collecting responses", fifo)
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, names); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, sequences map[string]bool) error {
	switch a.Type {
	case AssertFetchOrder:
		if len(a.Items) == 0 {
			return fmt.Errorf("assertions[%d]: items list is required for fetch_order", index)
		}
	case AssertSequenceOrder:
		if len(a.Sequences) < 2 {
			return fmt.Errorf("assertions[%d]: sequence_order needs at least two sequences", index)
		}
		for _, name := range a.Sequences {
			if !sequences[name] {
				return fmt.Errorf("assertions[%d]: unknown sequence %q", index, name)
			}
		}
	case AssertSequenceError:
		if a.Sequence == "" || a.Code == "" {
			return fmt.Errorf("assertions[%d]: sequence and code are required for sequence_error", index)
		}
		if !sequences[a.Sequence] {
			return fmt.Errorf("assertions[%d]: unknown sequence %q", index, a.Sequence)
		}
	case AssertResponsesMatched:
		if a.Sequence != "" && !sequences[a.Sequence] {
			return fmt.Errorf("assertions[%d]: unknown sequence %q", index, a.Sequence)
		}
	case AssertFetchCount:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// collects reports whether the sequence reads responses back.
func (s SequenceSpec) collects() bool {
	return !s.Virtual && len(s.Items) > 0 && s.responseMode() != ResponsesNone
}

func (s SequenceSpec) responseMode() string {
	if s.Responses == "" {
		return ResponsesByID
	}
	return s.Responses
}
