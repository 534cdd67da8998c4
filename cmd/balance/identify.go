package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/the-ledger-must-balance/internal/cli"
	"github.com/Veraticus/the-ledger-must-balance/internal/importer"
	"github.com/spf13/cobra"
)

func identifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identify [files or directories...]",
		Short: "Show which importer handles each file",
		Long: `List every file with the importer that recognizes it, the account it
would be filed under and its document date.

Examples:
  balance identify ~/Downloads
  balance identify ~/Downloads/*.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			importers, err := loadImporters()
			if err != nil {
				return err
			}
			files, err := collectFiles(args)
			if err != nil {
				return err
			}
			return runIdentify(cmd.OutOrStdout(), importers, files)
		},
	}
}

func runIdentify(w io.Writer, importers []importer.Importer, paths []string) error {
	rows := make([][]string, 0, len(paths))
	identified := 0

	for _, path := range paths {
		f := importer.NewFile(path)
		imp, err := importer.Select(importers, f)
		switch {
		case errors.Is(err, importer.ErrUnidentified):
			rows = append(rows, []string{path, cli.SubtleStyle.Render("-")})
			continue
		case err != nil:
			rows = append(rows, []string{path, cli.ErrorStyle.Render("ambiguous")})
			slog.Warn("File matched several importers", "error", err)
			continue
		}

		identified++
		date := "-"
		if d, err := imp.FileDate(f); err != nil {
			slog.Warn("Failed to date file", "file", path, "importer", imp.Name(), "error", err)
		} else if !d.IsZero() {
			date = d.Format("2006-01-02")
		}
		rows = append(rows, []string{path, imp.Name(), imp.FileAccount(f), date})
	}

	out := cli.RenderTable([]string{"File", "Importer", "Account", "Date"}, rows) + "\n\n" +
		cli.FormatInfo(fmt.Sprintf("%d of %d files identified", identified, len(paths)))
	_, err := fmt.Fprintln(w, out)
	return err
}
