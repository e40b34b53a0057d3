package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/finextract/internal/pipeline"
	"github.com/dgallion1/finextract/internal/record"
	"github.com/dgallion1/finextract/internal/repair"
)

var extractFlags struct {
	collection string
	indexed    bool
	years      []string
	out        string
	format     string
}

var extractCmd = &cobra.Command{
	Use:   "extract FILE",
	Short: "Extract financial rows from one document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runExtract(ctx, args[0], cmd.OutOrStdout())
	},
}

func init() {
	f := extractCmd.Flags()
	f.StringVar(&extractFlags.collection, "collection", "", "collection ID (default: SHA-256 of the file)")
	f.BoolVar(&extractFlags.indexed, "indexed", false, "the collection is expected to be indexed already")
	f.StringSliceVar(&extractFlags.years, "year", nil, "year to extract; repeatable (default: years found by the model)")
	f.StringVar(&extractFlags.out, "out", "", "output file; format follows the extension (default: stdout)")
	f.StringVar(&extractFlags.format, "format", "", "output format csv|xlsx|json (overrides --out extension)")
}

func runExtract(ctx context.Context, path string, stdout io.Writer) error {
	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.pipeline.Run(ctx, pipeline.Request{
		Path:           path,
		CollectionID:   extractFlags.collection,
		AlreadyIndexed: extractFlags.indexed,
		Years:          extractFlags.years,
		OnStage: func(s pipeline.Stage) {
			logger.Debug("stage", "stage", s, "file", path)
		},
	})
	if err != nil {
		return err
	}
	if res.Parse.Status == repair.Unparsed {
		logger.Warn("model output could not be decoded; rows are empty", "error", res.Parse.Err)
	}

	format := extractFlags.format
	if format == "" {
		format = record.FormatJSON
		if extractFlags.out != "" {
			format = record.FormatForPath(extractFlags.out)
		}
	}

	if extractFlags.out == "" {
		return record.Write(stdout, format, res.Rows)
	}
	if err := writeFile(extractFlags.out, format, res.Rows); err != nil {
		return err
	}
	logger.Info("wrote rows", "path", extractFlags.out, "rows", len(res.Rows), "collection", res.CollectionID)
	return nil
}

// writeFile writes rows to path and reports the close error, which is where
// buffered write failures surface.
func writeFile(path, format string, rows []record.FinancialRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := record.Write(f, format, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
