// facetctl is the operational companion of the facetdex server: offline
// rebuilds, configuration linting and generation snapshots, driven by the
// same config files as the server.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/classify"
	"github.com/kailas-cloud/facetdex/internal/config"
	"github.com/kailas-cloud/facetdex/internal/index"
	logpkg "github.com/kailas-cloud/facetdex/internal/logger"
	"github.com/kailas-cloud/facetdex/internal/source"
	srcRedis "github.com/kailas-cloud/facetdex/internal/source/redis"
	srcSqlite "github.com/kailas-cloud/facetdex/internal/source/sqlite"
	"github.com/kailas-cloud/facetdex/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "facetctl",
		Short:   "Offline tooling for the facetdex catalog index",
		Version: fmt.Sprintf("%s (%s)", version.Version, version.Commit),
	}
	root.PersistentFlags().String("env", config.GetEnv(), "configuration environment (local, dev, prod)")
	root.PersistentFlags().Bool("verbose", false, "log pipeline progress")

	root.AddCommand(newRebuildCmd())
	root.AddCommand(newLintCmd())
	root.AddCommand(newSnapshotCmd())
	return root
}

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Build a generation from the catalog source and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, report, err := buildGeneration(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"generation_id": gen.ID(),
				"items":         gen.Len(),
				"built_at":      gen.BuiltAt().Format(time.RFC3339),
				"dead_rules":    report.DeadRules(),
				"unknown_codes": report.UnknownCodes,
			})
		},
	}
}

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Check taxonomy, rules and filters for broken references",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defs, err := config.LoadDefinitions(cfg.Definitions)
			if err != nil {
				return err
			}

			findings := lintDefinitions(defs)
			for _, f := range findings {
				cmd.Println(f)
			}
			if len(findings) > 0 {
				return fmt.Errorf("%d finding(s)", len(findings))
			}
			cmd.Println("ok")
			return nil
		},
	}
}

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Build a generation and export it as a zstd snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			gen, _, err := buildGeneration(cmd)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create snapshot file: %w", err)
			}
			defer f.Close()

			if err := index.Save(f, gen); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
			cmd.Printf("wrote %s: generation %s, %d items\n", out, gen.ID(), gen.Len())
			return nil
		},
	}
	cmd.Flags().String("out", "facetdex.snapshot", "output file")
	return cmd
}

// lintDefinitions reports dangling references the YAML loaders cannot catch:
// rules and filters pointing at taxonomy codes that do not exist.
func lintDefinitions(defs config.Definitions) []string {
	var findings []string
	for _, r := range defs.Rules {
		if code := r.TaxonomyCode(); code != "" {
			if _, ok := defs.Forest.Node(code); !ok {
				findings = append(findings, fmt.Sprintf("rule %q assigns unknown taxonomy code %q", r.Name(), code))
			}
		}
	}
	seen := map[string]bool{}
	for _, d := range defs.Filters {
		if seen[d.Key()] {
			findings = append(findings, fmt.Sprintf("duplicate filter key %q", d.Key()))
		}
		seen[d.Key()] = true
		for _, code := range d.TaxonomyCodes() {
			if _, ok := defs.Forest.Node(code); !ok {
				findings = append(findings, fmt.Sprintf("filter %q scoped to unknown taxonomy code %q", d.Key(), code))
			}
		}
	}
	return findings
}

func buildGeneration(cmd *cobra.Command) (*index.Generation, classify.Report, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, classify.Report{}, err
	}
	defs, err := config.LoadDefinitions(cfg.Definitions)
	if err != nil {
		return nil, classify.Report{}, err
	}

	src, err := newSource(cfg.Source)
	if err != nil {
		return nil, classify.Report{}, err
	}
	defer func() { _ = src.Close() }()

	logger := zap.NewNop()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		env, _ := cmd.Flags().GetString("env")
		if l, err := logpkg.NewLogger(env, cfg.Logging.Level); err == nil {
			logger = l
		}
	}

	engine := classify.NewEngine(defs.Rules, defs.Forest)
	builder := index.NewBuilder(uuid.NewString(), src, engine, defs.Forest, defs.Filters, index.BuilderConfig{
		BatchSize: cfg.Rebuild.BatchSize,
		Workers:   cfg.Rebuild.Workers,
		FacetTopN: cfg.Query.FacetTopN,
	}, logger)

	if err := builder.Build(cmd.Context()); err != nil {
		return nil, classify.Report{}, err
	}
	gen, err := builder.Generation()
	if err != nil {
		return nil, classify.Report{}, err
	}
	return gen, gen.Report(), nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	env, _ := cmd.Flags().GetString("env")
	return config.Load(env)
}

func newSource(cfg config.SourceConfig) (source.Source, error) {
	switch cfg.Driver {
	case "sqlite":
		return srcSqlite.New(srcSqlite.Config{Path: cfg.Path})
	case "redis":
		return srcRedis.New(srcRedis.Config{
			Addrs:     cfg.Addrs,
			Password:  cfg.Password,
			KeyPrefix: cfg.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown source driver %q", cfg.Driver)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
