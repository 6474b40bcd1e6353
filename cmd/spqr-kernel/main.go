package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pg-sharding/spqrkernel/pkg/config"
	"github.com/pg-sharding/spqrkernel/pkg/spqrlog"
	"github.com/pg-sharding/spqrkernel/router/merge"
	"github.com/pg-sharding/spqrkernel/router/plan"
	"github.com/pg-sharding/spqrkernel/router/qrouter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

type options struct {
	cfgPath  string
	logLevel string
	output   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "spqr-kernel explain --config `path-to-sharding-config` `statement-file`",
		Short: "spqr-kernel",
		Long:  "Route and rewrite statements against a sharding configuration",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.cfgPath, "config", "c", "/etc/spqr/sharding.yaml", "path to sharding config file")
	rootCmd.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", "", "log level, overrides config")

	rootCmd.AddCommand(newExplainCmd(opts), newExecCmd(opts), newValidateCmd(opts))
	return rootCmd
}

func (o *options) load() (*config.ShardingCfg, error) {
	cfg, err := config.LoadShardingCfg(o.cfgPath)
	if err != nil {
		return nil, errors.Wrap(err, "load sharding config")
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// plan loads the config and plans the statement file at path.
func (o *options) plan(cmd *cobra.Command, path string) (*config.ShardingCfg, *qrouter.ShardingQrouter, *plan.ScatterPlan, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, nil, err
	}
	qr, err := qrouter.NewQrouterFromConfig(cfg, nil)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "build sharding rule")
	}

	sf, err := LoadStatementFile(path)
	if err != nil {
		return nil, nil, nil, err
	}
	if sf.Dialect == "" {
		sf.Dialect = cfg.Dialect
	}
	stmt, err := sf.Statement()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "describe statement")
	}
	params, err := sf.BindParams()
	if err != nil {
		return nil, nil, nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := qr.Plan(ctx, stmt, params)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "plan statement")
	}
	return cfg, qr, p, nil
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "check the sharding config and print its rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			qr, err := qrouter.NewQrouterFromConfig(cfg, nil)
			if err != nil {
				return errors.Wrap(err, "build sharding rule")
			}
			rule := qr.Rule()
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "datasources: %v\n", rule.DataSources)
			for _, tr := range rule.TableRules() {
				_, _ = fmt.Fprintf(out, "table %s: %d data nodes\n", tr.LogicTable, len(tr.DataNodes))
			}
			for _, g := range rule.BindingGroups() {
				_, _ = fmt.Fprintf(out, "binding: %v\n", []string(g))
			}
			for _, b := range rule.BroadcastTables() {
				_, _ = fmt.Fprintf(out, "broadcast: %s\n", b)
			}
			return nil
		},
	}
}

type unitOutput struct {
	Unit   string        `yaml:"unit"`
	Query  string        `yaml:"query"`
	Params []interface{} `yaml:"params,omitempty"`
}

type explainOutput struct {
	Kind    string       `yaml:"kind"`
	Targets []string     `yaml:"targets"`
	Merge   string       `yaml:"merge,omitempty"`
	Derived []string     `yaml:"derived,omitempty"`
	Units   []unitOutput `yaml:"units"`
}

func describe(p *plan.ScatterPlan) explainOutput {
	out := explainOutput{
		Kind:    p.Stmt.Kind.String(),
		Targets: p.ExecutionTargets(),
	}
	if p.Rewritten() && p.Select != nil {
		out.Merge = merge.SelectStrategy(p.Select).String()
		for _, d := range p.Select.Derived {
			out.Derived = append(out.Derived, d.Alias+" = "+d.Expression)
		}
	}
	for _, sp := range p.SubPlans {
		out.Units = append(out.Units, unitOutput{Unit: sp.Unit.String(), Query: sp.Query, Params: sp.Params})
	}
	return out
}

func writeText(w io.Writer, out explainOutput) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "kind: %s\n", out.Kind)
	fmt.Fprintf(&sb, "targets: %v\n", out.Targets)
	if out.Merge != "" {
		fmt.Fprintf(&sb, "merge: %s\n", out.Merge)
	}
	for _, d := range out.Derived {
		fmt.Fprintf(&sb, "derived: %s\n", d)
	}
	for _, u := range out.Units {
		fmt.Fprintf(&sb, "-- %s\n%s\n-- params: %v\n", u.Unit, u.Query, u.Params)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func newExplainCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain `statement-file`",
		Short: "print routing units and rewritten statements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, p, err := opts.plan(cmd, args[0])
			if err != nil {
				return err
			}
			spqrlog.Zero.Debug().Str("plan", p.ID).Msg("explained statement")

			out := describe(p)
			switch opts.output {
			case "yaml":
				data, err := yaml.Marshal(out)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			case "", "text":
				return writeText(cmd.OutOrStdout(), out)
			}
			return errors.Errorf("unknown output format %q", opts.output)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format: text or yaml")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		spqrlog.Zero.Error().Err(err).Msg("")
		os.Exit(1)
	}
}
