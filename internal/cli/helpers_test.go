package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: pass_alu
description: "One item, answered"
sequences:
  - name: A
    items:
      - { name: add, a: 1, b: 5 }
assertions:
  - type: fetch_order
    items: [A-0001]
  - type: responses_matched
`

const failingScenario = `name: fail_alu
description: "Expects two fetches, gets one"
sequences:
  - name: A
    items:
      - { name: add, a: 2, b: 2 }
assertions:
  - type: fetch_count
    count: 2
`

const invalidScenario = `name: bad
sequences:
  - name: A
    itmes:
      - { name: add }
assertions:
  - type: fetch_count
    count: 0
`

// writeScenario writes content to dir/name and returns the path.
func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func findCommand(t *testing.T, name string) *cobra.Command {
	t.Helper()
	sub, _, err := NewRootCommand().Find([]string{name})
	require.NoError(t, err)
	return sub
}
