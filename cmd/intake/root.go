package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agenthands/intake/internal/app"
	"github.com/agenthands/intake/internal/config"
	"github.com/agenthands/intake/internal/core"
	"github.com/agenthands/intake/internal/core/model"
)

type rootOptions struct {
	configPath string
	backend    string
	storeURI   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "intake",
		Short:         "Extract, deduplicate and route service requests",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config TOML (default $CONFIG_PATH or config/config.toml)")
	root.PersistentFlags().StringVar(&opts.backend, "store", "", "override store backend: memory, sqlite, memgraph")
	root.PersistentFlags().StringVar(&opts.storeURI, "store-uri", "", "override store URI or sqlite path")

	root.AddCommand(newRunCmd(opts), newIngestCmd(opts), newRosterCmd(opts))
	return root
}

func (o *rootOptions) config() (*config.Config, error) {
	cfg, _, err := config.Resolve(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.backend != "" {
		cfg.Store.Backend = o.backend
	}
	if o.storeURI != "" {
		cfg.Store.URI = o.storeURI
	}
	return cfg, nil
}

func (o *rootOptions) open(ctx context.Context) (*app.App, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "run [extraction|dedupe|routing|analysis]",
		Short:     "Run the full pipeline, or a single stage",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"extraction", "dedupe", "routing", "analysis"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var stage core.Stage
			if len(args) == 1 {
				s, err := core.ParseStage(args[0])
				if err != nil {
					return err
				}
				stage = s
			}

			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			var sum core.RunSummary
			if stage == "" {
				sum, err = a.Pipeline.Run(ctx)
			} else {
				sum, err = a.Pipeline.RunStage(ctx, stage)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), sum)
		},
	}
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.json>",
		Short: "Store records from a JSON file holding one record or an array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			recs, err := readRecords(args[0])
			if err != nil {
				return err
			}

			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			failed := 0
			for _, r := range recs {
				stored, err := a.Ingestor.Ingest(ctx, r)
				if err != nil {
					failed++
					a.Logger.Error("ingest failed", zap.String("record", r.ID), zap.Error(err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", stored.ID, stored.Label)
			}
			if failed > 0 {
				return eris.Errorf("%d of %d records failed", failed, len(recs))
			}
			return nil
		},
	}
}

func newRosterCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "roster",
		Short: "Print the handler roster in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			printRoster(cmd.OutOrStdout(), cfg.Roster)
			return nil
		},
	}
}

func printRoster(w io.Writer, roster model.Roster) {
	for i, h := range roster {
		types := make([]string, 0, len(h.Skills))
		for t := range h.Skills {
			types = append(types, t)
		}
		sort.Strings(types)

		fmt.Fprintf(w, "%2d. %s (#%d)\n", i+1, h.Name, h.ID)
		for _, t := range types {
			fmt.Fprintf(w, "      %s: %s\n", t, strings.Join(h.Skills[t], ", "))
		}
	}
}

func readRecords(path string) ([]model.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var recs []model.RawRecord
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, eris.Wrapf(err, "parse %s", path)
		}
		return recs, nil
	}

	var rec model.RawRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrapf(err, "parse %s", path)
	}
	return []model.RawRecord{rec}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
