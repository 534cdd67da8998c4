package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Veraticus/the-ledger-must-balance/internal/cli"
	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/Veraticus/the-ledger-must-balance/internal/importer"
	"github.com/Veraticus/the-ledger-must-balance/internal/ledger"
	"github.com/Veraticus/the-ledger-must-balance/internal/model"
	"github.com/spf13/cobra"
)

const beancountHeader = ";; -*- mode: beancount -*-\n"

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [files or directories...]",
		Short: "Extract beancount transactions from downloaded files",
		Long: `Run the matching importer over every file and print the transactions as
beancount entries. Transactions that need review carry the ! flag.

Examples:
  balance extract ~/Downloads > import.beancount
  balance extract -o import.beancount ~/Downloads/*.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: runExtractCmd,
	}

	cmd.Flags().StringP("output", "o", "", "write entries to this file instead of stdout")
	cmd.Flags().Bool("source-meta", false, "include filename and lineno metadata")
	cmd.Flags().Bool("no-progress", false, "hide the progress bar")

	return cmd
}

type extractOptions struct {
	progress   io.Writer
	sourceMeta bool
}

type extractSummary struct {
	failed       []string
	files        int
	extracted    int
	skipped      int
	transactions int
	flagged      int
}

func runExtractCmd(cmd *cobra.Command, args []string) (err error) {
	outputPath, _ := cmd.Flags().GetString("output")
	sourceMeta, _ := cmd.Flags().GetBool("source-meta")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	importers, err := loadImporters()
	if err != nil {
		return err
	}
	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputPath != "" {
		f, createErr := os.Create(outputPath)
		if createErr != nil {
			return fmt.Errorf("failed to create %s: %w", outputPath, createErr)
		}
		defer func() {
			if cerr := f.Close(); err == nil && cerr != nil {
				err = cerr
			}
		}()
		out = f
	}

	opts := extractOptions{sourceMeta: sourceMeta}
	if !noProgress && outputPath != "" {
		opts.progress = cmd.ErrOrStderr()
	}

	summary, err := runExtract(cmd.Context(), out, importers, files, opts)
	fmt.Fprintln(cmd.ErrOrStderr(), summary.render())
	if err != nil {
		return err
	}
	if len(summary.failed) > 0 {
		return fmt.Errorf("%d of %d files failed to extract", len(summary.failed), summary.files)
	}
	return nil
}

// runExtract writes the transactions of every identified file to out.
// A file that fails is reported and skipped; cancellation stops the run.
func runExtract(ctx context.Context, out io.Writer, importers []importer.Importer, paths []string, opts extractOptions) (extractSummary, error) {
	summary := extractSummary{files: len(paths)}

	var printerOpts []ledger.Option
	if opts.sourceMeta {
		printerOpts = append(printerOpts, ledger.WithSourceMeta())
	}
	printer := ledger.NewPrinter(out, printerOpts...)

	var progress *cli.Progress
	if opts.progress != nil {
		progress = cli.NewProgress(opts.progress, len(paths), "Extracting files...")
		defer progress.Done()
	}

	if _, err := io.WriteString(out, beancountHeader); err != nil {
		return summary, fmt.Errorf("failed to write output: %w", err)
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		txns, err := extractFile(ctx, importers, path)
		progress.Step()
		switch {
		case errors.Is(err, importer.ErrUnidentified):
			slog.Debug("Skipping unidentified file", "file", path)
			summary.skipped++
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return summary, err
		case err != nil:
			fields := common.Fields{"file": path}
			if common.IsConfigError(err) {
				fields["config"] = configPath()
			}
			common.LogError(err, "Failed to extract file", fields)
			summary.failed = append(summary.failed, path)
			continue
		}

		summary.extracted++
		summary.transactions += len(txns)
		for _, txn := range txns {
			if txn.Flag == model.FlagWarning {
				summary.flagged++
			}
		}

		if _, err := fmt.Fprintf(out, "\n**** %s\n\n", path); err != nil {
			return summary, fmt.Errorf("failed to write output: %w", err)
		}
		if err := printer.Transactions(txns); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

func extractFile(ctx context.Context, importers []importer.Importer, path string) ([]model.Transaction, error) {
	f := importer.NewFile(path)
	imp, err := importer.Select(importers, f)
	if err != nil {
		return nil, err
	}

	slog.Info("Extracting file", "file", path, "importer", imp.Name())
	txns, err := imp.Extract(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s (%s): %w", path, imp.Name(), err)
	}
	return txns, nil
}

func (s extractSummary) render() string {
	lines := fmt.Sprintf("Files:        %d extracted, %d skipped, %d failed\n", s.extracted, s.skipped, len(s.failed)) +
		fmt.Sprintf("Transactions: %d", s.transactions)
	if s.flagged > 0 {
		lines += "\n" + cli.FormatWarning(fmt.Sprintf("%d flagged for review", s.flagged))
	}
	for _, path := range s.failed {
		lines += "\n" + cli.FormatError(path)
	}
	return cli.RenderBox("Extraction Complete", lines)
}
