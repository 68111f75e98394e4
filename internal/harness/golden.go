package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the deterministic part of result as canonical JSON:
// pass/fail, how many items were fetched, and each sequence's own
// transcript. Global interleaving and run ids are left out, since they
// vary between runs.
func Snapshot(result *Result) ([]byte, error) {
	seqs := make([]any, len(result.Sequences))
	for i, tr := range result.Sequences {
		entry := map[string]any{
			"name":  tr.Name,
			"sent":  tr.Sent,
			"steps": tr.Steps,
		}
		if tr.Code != "" {
			entry["code"] = tr.Code
		}
		seqs[i] = entry
	}

	return MarshalCanonical(map[string]any{
		"scenario":  result.Scenario,
		"pass":      result.Pass,
		"fetched":   len(result.Fetched),
		"sequences": seqs,
	})
}

// AssertGolden compares result's snapshot with testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	data, err := Snapshot(result)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
