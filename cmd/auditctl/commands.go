package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	"github.com/bryanwahyu/automaton-audit/internal/domain/evaluation"
	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
	"github.com/bryanwahyu/automaton-audit/internal/infra/tabular"
)

// Set via -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "auditctl",
		Short:         "Evaluate audit rules against tabular exports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "auditctl version %s\ncommit: %s\n", version, commit)
		},
	}
}

// ruleFile is the YAML shape of --rules.
type ruleFile struct {
	Rules []struct {
		Name        string          `yaml:"name"`
		Description string          `yaml:"description"`
		AuditType   string          `yaml:"audit_type"`
		Severity    string          `yaml:"severity"`
		Conditions  rules.Condition `yaml:"conditions"`
		Active      *bool           `yaml:"is_active"`
	} `yaml:"rules"`
}

func loadRules(path string) ([]*rules.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make([]*rules.Rule, 0, len(rf.Rules))
	for i, r := range rf.Rules {
		sev := rules.SeverityMedium
		if r.Severity != "" {
			if sev, err = rules.ParseSeverity(r.Severity); err != nil {
				return nil, fmt.Errorf("rule %d (%s): %w", i+1, r.Name, err)
			}
		}
		if err := r.Conditions.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, r.Name, err)
		}
		out = append(out, &rules.Rule{
			ID:          rules.RuleID(uuid.NewString()),
			Name:        r.Name,
			Description: r.Description,
			AuditType:   strings.ToLower(strings.TrimSpace(r.AuditType)),
			Condition:   r.Conditions,
			Severity:    sev,
			IsActive:    r.Active == nil || *r.Active,
		})
	}
	return out, nil
}

func newEvaluateCmd() *cobra.Command {
	var (
		rulesPath string
		auditType string
		costField string
		asJSON    bool
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate [file]",
		Short: "Run the rules file against a CSV or XLSX file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := audits.ParseType(auditType)
			if err != nil {
				return err
			}
			active, err := loadRules(rulesPath)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			rows, err := tabular.Parser{}.Parse(filepath.Base(args[0]), f)
			if err != nil {
				return err
			}

			if err := tabular.RequireColumns(rows, ruleFields(active, t)...); err != nil {
				if strict {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
			}

			a := &audits.Audit{ID: audits.AuditID(uuid.NewString()), Type: t, FileName: filepath.Base(args[0])}
			eng := &evaluation.Engine{CostField: costField}
			res := eng.Process(a, active, rows)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printTable(cmd.OutOrStdout(), len(rows), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "rules.yaml", "YAML file with the rules to apply")
	cmd.Flags().StringVar(&auditType, "type", "", "Audit type: cloud, hospitality or business")
	cmd.Flags().StringVar(&costField, "cost-field", evaluation.DefaultCostField, "Column holding the cost or revenue impact")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when a column used by a rule is missing from the file")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

// ruleFields lists the columns the active rules of one audit type read.
func ruleFields(list []*rules.Rule, t audits.Type) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range list {
		if !r.IsActive || !r.AppliesTo(string(t)) || seen[r.Condition.Field] {
			continue
		}
		seen[r.Condition.Field] = true
		out = append(out, r.Condition.Field)
	}
	return out
}

func printTable(w io.Writer, rows int, res evaluation.Result) {
	fmt.Fprintf(w, "Rows: %d  Findings: %d  Score: %d/100  Total impact: %.2f\n",
		rows, len(res.Findings), res.Score, res.TotalImpact)

	if len(res.Findings) == 0 {
		fmt.Fprintln(w, "No findings.")
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-40s  %-10s  %s\n", "RULE", "SEVERITY", "IMPACT")
	fmt.Fprintln(w, strings.Repeat("-", 64))
	for _, f := range res.Findings {
		impact := "-"
		if f.CostImpact != nil {
			impact = fmt.Sprintf("%.2f", *f.CostImpact)
		}
		fmt.Fprintf(w, "%-40s  %-10s  %s\n", f.Title, f.Severity, impact)
	}
}
