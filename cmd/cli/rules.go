package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/prisvakt/compliance-service/internal/compliance"
)

var rulesFile string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print and validate the effective rule set",
	Long: `Print the rule set the service evaluates with as YAML and validate it.

Use --file to check a rule set file before deploying it.`,
	Example: `  compliance rules
  compliance rules --file rules/se.yaml`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)

	rulesCmd.Flags().StringVar(&rulesFile, "file", "", "Rule set YAML file to validate")
}

func runRules(cmd *cobra.Command, args []string) error {
	rules, err := resolveRules(rulesFile)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(rules); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	fmt.Printf("# required history: %d days, reference lookback: %d days\n",
		int(rules.RequiredHistory().Hours()/24), rules.LookbackDays())

	if err := rules.Validate(); err != nil {
		return fmt.Errorf("rule set is invalid (the definition is skipped at evaluation time): %w", err)
	}
	for _, def := range rules.Rules {
		if def.Disabled {
			logger.Warn().Str("rule", string(def.RuleType)).Msg("Rule is disabled")
		}
	}
	if len(rules.Rules) < len(compliance.RuleTypes) {
		logger.Warn().Int("rules", len(rules.Rules)).Msg("Rule set does not define every rule type")
	}
	return nil
}
