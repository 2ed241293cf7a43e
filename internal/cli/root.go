// Package cli implements vaultctl, a command line front end to the same
// ingestion stack the API server runs.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/markdave123-py/studyvault/internal/app"
	"github.com/markdave123-py/studyvault/internal/config"
	"github.com/markdave123-py/studyvault/internal/logger"
	"github.com/spf13/cobra"
)

// okReporter is satisfied by every result envelope.
type okReporter interface{ OK() bool }

// errFailed makes the process exit non-zero after the envelope was printed.
var errFailed = errors.New("operation failed")

type options struct {
	envFile string
	backend string
	logMode string
}

// newRootCommand builds the vaultctl command tree around a component factory.
func newRootCommand(build func(ctx context.Context, opts *options) (*app.Components, error)) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Ingest, search and delete study vault documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env", "", "dotenv file to load (default ./.env)")
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "vector backend override: qdrant, pgvector or memory")
	root.PersistentFlags().StringVar(&opts.logMode, "log", "", "log mode override: development or production")

	withComponents := func(run func(ctx context.Context, c *app.Components, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			c, err := build(ctx, opts)
			if err != nil {
				return err
			}
			defer c.Close()
			return run(ctx, c, cmd.OutOrStdout())
		}
	}

	root.AddCommand(
		newIngestCommand(withComponents),
		newDeleteCommand(withComponents),
		newSearchCommand(withComponents),
		newTranscriptCommand(withComponents),
	)
	return root
}

// Execute runs vaultctl against the real environment.
func Execute() {
	root := newRootCommand(buildFromEnv)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func buildFromEnv(ctx context.Context, opts *options) (*app.Components, error) {
	cfg := config.LoadConfigFrom(opts.envFile)
	if opts.backend != "" {
		cfg.VectorBackend = opts.backend
	}
	mode := cfg.LogMode
	if opts.logMode != "" {
		mode = opts.logMode
	}
	log, err := logger.New(mode)
	if err != nil {
		return nil, err
	}
	return app.NewComponents(ctx, log, cfg)
}

// printEnvelope writes res as indented JSON and turns an error status into
// a non-zero exit.
func printEnvelope(out io.Writer, res okReporter) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.OK() {
		return errFailed
	}
	return nil
}
