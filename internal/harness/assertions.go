package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/seqx/internal/exchange"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Fetched  []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Fetched) > 0 {
		fmt.Fprintf(&buf, "  Fetch order: %s\n", strings.Join(e.Fetched, ", "))
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion of scenario against result and
// returns one message per failure. A sequence that stopped with an error
// not named by a sequence_error assertion is a failure too.
func EvaluateAssertions(result *Result, scenario *Scenario) []string {
	var errs []string
	expected := make(map[string]bool)

	for _, a := range scenario.Assertions {
		var err error
		switch a.Type {
		case AssertFetchOrder:
			err = assertFetchOrder(result, a)
		case AssertFetchCount:
			err = assertFetchCount(result, a)
		case AssertSequenceOrder:
			err = assertSequenceOrder(result, a)
		case AssertResponsesMatched:
			err = assertResponsesMatched(result, scenario, a)
		case AssertSequenceError:
			expected[a.Sequence] = true
			err = assertSequenceError(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	for _, tr := range result.Sequences {
		if tr.Error != "" && !expected[tr.Name] {
			errs = append(errs, fmt.Sprintf("sequence %s failed: %s", tr.Name, tr.Error))
		}
	}
	return errs
}

func assertFetchOrder(result *Result, a Assertion) error {
	if slices.Equal(result.Fetched, a.Items) {
		return nil
	}
	return &AssertionError{
		Type:     AssertFetchOrder,
		Expected: strings.Join(a.Items, ", "),
		Actual:   strings.Join(result.Fetched, ", "),
		Fetched:  result.Fetched,
	}
}

func assertFetchCount(result *Result, a Assertion) error {
	if len(result.Fetched) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertFetchCount,
		Expected: fmt.Sprintf("%d items fetched", a.Count),
		Actual:   fmt.Sprintf("%d items fetched", len(result.Fetched)),
		Fetched:  result.Fetched,
	}
}

// assertSequenceOrder checks that the named sequences had their first item
// selected in the given order.
func assertSequenceOrder(result *Result, a Assertion) error {
	first := make(map[string]int)
	pos := 0
	for _, ev := range result.Trace {
		if ev.Kind != exchange.EventSelected {
			continue
		}
		pos++
		if _, seen := first[ev.ProducerID]; !seen {
			first[ev.ProducerID] = pos
		}
	}

	for _, name := range a.Sequences {
		if first[name] == 0 {
			return &AssertionError{
				Type:     AssertSequenceOrder,
				Expected: fmt.Sprintf("sequences in order: %v", a.Sequences),
				Actual:   fmt.Sprintf("no item of %s was selected", name),
				Fetched:  result.Fetched,
			}
		}
	}
	for i := 1; i < len(a.Sequences); i++ {
		prev, curr := a.Sequences[i-1], a.Sequences[i]
		if first[prev] >= first[curr] {
			return &AssertionError{
				Type:     AssertSequenceOrder,
				Expected: fmt.Sprintf("sequences in order: %v", a.Sequences),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, first[prev], curr, first[curr]),
				Fetched: result.Fetched,
			}
		}
	}
	return nil
}

// assertResponsesMatched checks that every sequence which collects
// responses got exactly one per request, each linked to that request.
func assertResponsesMatched(result *Result, scenario *Scenario, a Assertion) error {
	for _, spec := range scenario.Sequences {
		if a.Sequence != "" && spec.Name != a.Sequence {
			continue
		}
		if spec.responseMode() == ResponsesNone {
			continue
		}
		tr, ok := result.Transcript(spec.Name)
		if !ok {
			return fmt.Errorf("no transcript for sequence %s", spec.Name)
		}

		got := make(map[string]int, len(tr.Responses))
		for _, rsp := range tr.Responses {
			if rsp.ProducerID != spec.Name || !slices.Contains(tr.Sent, rsp.RequestID) {
				return &AssertionError{
					Type:     AssertResponsesMatched,
					Expected: fmt.Sprintf("%s receives responses to its own requests", spec.Name),
					Actual:   fmt.Sprintf("response %s belongs to %s/%s", rsp.ID, rsp.ProducerID, rsp.RequestID),
				}
			}
			got[rsp.RequestID]++
		}
		for _, id := range tr.Sent {
			if got[id] != 1 {
				return &AssertionError{
					Type:     AssertResponsesMatched,
					Expected: fmt.Sprintf("one response for %s", id),
					Actual:   fmt.Sprintf("%d responses", got[id]),
				}
			}
		}
	}
	return nil
}

func assertSequenceError(result *Result, a Assertion) error {
	tr, ok := result.Transcript(a.Sequence)
	if !ok {
		return fmt.Errorf("no transcript for sequence %s", a.Sequence)
	}
	if tr.Code == a.Code {
		return nil
	}
	actual := "no error"
	if tr.Error != "" {
		actual = tr.Error
	}
	return &AssertionError{
		Type:     AssertSequenceError,
		Expected: fmt.Sprintf("%s fails with %s", a.Sequence, a.Code),
		Actual:   actual,
	}
}
