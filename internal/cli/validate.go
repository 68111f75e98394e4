package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/seqx/internal/harness"
)

// FileValidation is the validation outcome of one scenario file.
type FileValidation struct {
	Path  string `json:"path"`
	Name  string `json:"name,omitempty"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario-file-or-dir>",
		Short: "Validate scenarios without running them",
		Long: `Check scenario files against the scenario schema and consistency rules
without starting a sequencer. Accepts a single file or a directory.

Exit codes:
  0 - All scenarios valid
  1 - One or more scenarios invalid
  2 - Command error (path not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewExitError(ExitCommandError, fmt.Sprintf("path not found: %s", path))
		}
		return WrapExitError(ExitCommandError, "failed to stat path", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = findScenarioFiles(path, "")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		if len(files) == 0 {
			return NewExitError(ExitCommandError, fmt.Sprintf("no scenario files in %s", path))
		}
	}

	result := ValidateScenarios(files)
	for _, f := range result.Files {
		formatter.VerboseLog("validated %s", f.Path)
	}

	if formatter.Format == "json" {
		if result.Valid {
			if err := formatter.Success(result); err != nil {
				return err
			}
			return nil
		}
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: "E_INVALID_SCENARIO", Message: "scenario validation failed"},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "scenario validation failed")
	}

	w := formatter.Writer
	invalid := 0
	for _, f := range result.Files {
		if f.Valid {
			fmt.Fprintf(w, "%s %s\n", mark(true), f.Path)
			continue
		}
		invalid++
		fmt.Fprintf(w, "%s %s\n", mark(false), f.Path)
		fmt.Fprintf(w, "  %s\n", f.Error)
	}

	if invalid > 0 {
		fmt.Fprintf(w, "\n%d of %d scenario(s) invalid\n", invalid, len(result.Files))
		return NewExitError(ExitFailure, "scenario validation failed")
	}
	fmt.Fprintln(w, "All scenarios valid")
	return nil
}

// ValidateScenarios loads every file and reports which ones are valid.
func ValidateScenarios(files []string) ValidationResult {
	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		fv := FileValidation{Path: filepath.ToSlash(file), Valid: true}
		s, err := harness.LoadScenario(file)
		if err != nil {
			fv.Valid = false
			fv.Error = err.Error()
			result.Valid = false
		} else {
			fv.Name = s.Name
		}
		result.Files = append(result.Files, fv)
	}
	return result
}
