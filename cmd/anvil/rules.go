package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"forgeline/anvil/pkg/cli"
	"forgeline/anvil/pkg/config"
	"forgeline/anvil/pkg/rules"
	"forgeline/anvil/pkg/rules/actions"
	"forgeline/anvil/pkg/rules/engine"
	"forgeline/anvil/pkg/rules/source"
)

var rulesFlags struct {
	phase  string
	format string
	file   string
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage stored inspection rules",
	Long: `Manage the operator rules held in the rule store.

Examples:
  # List all stored rules
  anvil rules list

  # List rules for one phase
  anvil rules list --phase early

  # Import rules from a YAML file
  anvil rules import --file rules.yaml

  # Delete a rule by UUID
  anvil rules delete 0a1b2c3d-...`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rules",
	RunE:  listRules,
}

var rulesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import rules from a YAML file",
	RunE:  importRules,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <uuid>",
	Short: "Delete a stored rule",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteRule,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesImportCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)

	rulesListCmd.Flags().StringVarP(&rulesFlags.phase, "phase", "p", "", "filter by phase: early, main, post")
	rulesListCmd.Flags().StringVar(&rulesFlags.format, "format", "text", "output format: text, json")
	rulesImportCmd.Flags().StringVarP(&rulesFlags.file, "file", "f", "", "rule file to import (required)")
	rulesImportCmd.MarkFlagRequired("file")
}

// cmdContext returns the command's context, or a background context
// when the command was not run through Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openStore opens the configured SQLite rule store.
func openStore() (*source.SQLiteStore, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}

	reg := engine.NewDefaultRegistry(actions.Config{
		HTTPTimeout: cfg.APICall.Timeout,
		HTTPRetries: cfg.APICall.Retries,
	})
	return source.NewSQLiteStore(cfg.Rules.StorePath, reg)
}

// ruleSummary is the listing view of a stored rule.
type ruleSummary struct {
	UUID        string `json:"uuid"`
	Description string `json:"description"`
	Phase       string `json:"phase"`
	Priority    int    `json:"priority"`
	Sensitive   bool   `json:"sensitive,omitempty"`
}

func listRules(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return cli.NewCommandError("rules list", err)
	}
	defer store.Close()

	listed, err := store.List(cmdContext(cmd), source.Filters{
		Phase: rules.Phase(rulesFlags.phase),
	})
	if err != nil {
		return cli.NewCommandError("rules list", err)
	}

	summaries := make([]ruleSummary, 0, len(listed))
	for _, rule := range listed {
		summaries = append(summaries, ruleSummary{
			UUID:        rule.UUID,
			Description: rule.Description,
			Phase:       string(rule.Phase),
			Priority:    rule.Priority,
			Sensitive:   rule.Sensitive,
		})
	}

	out := cmd.OutOrStdout()
	if rulesFlags.format == "json" {
		formatter := &cli.JSONFormatter{Indent: true}
		return formatter.FormatTo(out, summaries)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(out, "no rules stored")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(out, "%s  phase=%-5s priority=%-5d %s\n", s.UUID, s.Phase, s.Priority, s.Description)
	}
	return nil
}

func importRules(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(rulesFlags.file)
	if err != nil {
		return cli.NewCommandError("rules import", err)
	}

	var raw []map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cli.NewCommandError("rules import", fmt.Errorf("invalid YAML: %w", err))
	}
	if len(raw) == 0 {
		return cli.NewCommandError("rules import", fmt.Errorf("no rules found in %s", rulesFlags.file))
	}

	store, err := openStore()
	if err != nil {
		return cli.NewCommandError("rules import", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	for i, rawRule := range raw {
		created, err := store.Create(cmdContext(cmd), rawRule)
		if err != nil {
			return cli.NewCommandError("rules import", fmt.Errorf("rule %d: %w", i, err))
		}
		fmt.Fprintf(out, "✓ imported %s (%s)\n", created.UUID, created.Description)
	}
	fmt.Fprintf(out, "%d rules imported\n", len(raw))
	return nil
}

func deleteRule(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return cli.NewCommandError("rules delete", err)
	}
	defer store.Close()

	if err := store.Delete(cmdContext(cmd), args[0]); err != nil {
		return cli.NewCommandError("rules delete", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ deleted %s\n", args[0])
	return nil
}
