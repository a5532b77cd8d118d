package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"forgeline/anvil/pkg/cli"
	"forgeline/anvil/pkg/rules/actions"
	"forgeline/anvil/pkg/rules/engine"
	"forgeline/anvil/pkg/rules/plugin"
	"forgeline/anvil/pkg/rules/validator"
)

var validateFlags struct {
	file   string
	dir    string
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate rule files",
	Long: `Validate inspection rule files for schema and semantic errors.

The validate command parses rule files and performs full validation:
  - YAML syntax validation
  - Rule schema validation (field names and types)
  - Semantic validation (phases, priorities, condition and action ops)
  - Argument validation against each op's declared parameters

Examples:
  # Validate a single file
  anvil validate --file rules.yaml

  # Validate a directory of rule files
  anvil validate --dir rules/

  # JSON output for CI
  anvil validate --file rules.yaml --format json`,
	RunE: validateRules,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.file, "file", "f", "", "rule file to validate")
	validateCmd.Flags().StringVarP(&validateFlags.dir, "dir", "d", "", "directory of rule files")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

// FileResult is the validation outcome for one rule file.
type FileResult struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Rules  int      `json:"rules"`
	Errors []string `json:"errors,omitempty"`
}

func validateRules(cmd *cobra.Command, args []string) error {
	if validateFlags.file == "" && validateFlags.dir == "" {
		return fmt.Errorf("either --file or --dir must be specified")
	}

	var files []string
	if validateFlags.file != "" {
		files = append(files, validateFlags.file)
	}
	if validateFlags.dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(validateFlags.dir, pattern))
			if err != nil {
				return fmt.Errorf("failed to list rule files: %w", err)
			}
			files = append(files, matches...)
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no rule files found")
	}

	reg := engine.NewDefaultRegistry(actions.Config{})

	results := make([]FileResult, 0, len(files))
	failed := false
	for _, file := range files {
		result := validateRuleFile(reg, file)
		if !result.Valid {
			failed = true
		}
		results = append(results, result)
	}

	if validateFlags.format == "json" {
		formatter := &cli.JSONFormatter{Indent: true}
		if err := formatter.FormatTo(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		for _, result := range results {
			if result.Valid {
				fmt.Fprintf(out, "✓ %s: %d rules valid\n", result.File, result.Rules)
				continue
			}
			fmt.Fprintf(out, "✗ %s:\n", result.File)
			for _, msg := range result.Errors {
				fmt.Fprintf(out, "  - %s\n", msg)
			}
		}
	}

	if failed {
		return fmt.Errorf("validation failed")
	}
	return nil
}

func validateRuleFile(reg *plugin.Registry, file string) FileResult {
	result := FileResult{File: file}

	data, err := os.ReadFile(file)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read file: %v", err))
		return result
	}

	var raw []map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("invalid YAML: %v", err))
		return result
	}

	result.Rules = len(raw)
	for i, rawRule := range raw {
		if _, err := validator.Validate(reg, rawRule); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("rule %d: %v", i, err))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}
