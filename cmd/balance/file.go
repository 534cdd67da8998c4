package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/the-ledger-must-balance/internal/cli"
	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/Veraticus/the-ledger-must-balance/internal/config"
	"github.com/Veraticus/the-ledger-must-balance/internal/importer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func fileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file [files or directories...]",
		Short: "Move identified files into the documents tree",
		Long: `Move each identified file to <documents>/<Account/Path>/<date>.<name>,
where the account and date come from its importer.

Examples:
  balance file -o ~/ledger/documents ~/Downloads
  balance file --dry-run ~/Downloads/*.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("output")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			if root == "" {
				root = config.Documents(viper.GetViper())
			}
			if root == "" {
				return common.NewUserError(
					"No documents folder; pass --output or set documents in "+configPath(),
					common.ErrMissingConfig)
			}

			importers, err := loadImporters()
			if err != nil {
				return err
			}
			files, err := collectFiles(args)
			if err != nil {
				return err
			}
			return runFile(cmd.Context(), cmd.OutOrStdout(), importers, files, config.ExpandPath(root), dryRun)
		},
	}

	cmd.Flags().StringP("output", "o", "", "documents root (default: documents from config)")
	cmd.Flags().BoolP("dry-run", "n", false, "show the moves without performing them")

	return cmd
}

func runFile(ctx context.Context, w io.Writer, importers []importer.Importer, paths []string, root string, dryRun bool) error {
	moved, failed := 0, 0

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		f := importer.NewFile(path)
		imp, err := importer.Select(importers, f)
		if errors.Is(err, importer.ErrUnidentified) {
			slog.Debug("Skipping unidentified file", "file", path)
			continue
		}

		var dst string
		if err == nil {
			dst, err = importer.Destination(imp, f, root)
		}
		if err == nil && !dryRun {
			err = importer.Move(path, dst)
		}
		if err != nil {
			failed++
			common.LogError(err, "Failed to file document", common.Fields{"file": path})
			fmt.Fprintln(w, cli.FormatError(path))
			continue
		}

		moved++
		fmt.Fprintf(w, "%s -> %s\n", path, dst)
	}

	verb := "Filed"
	if dryRun {
		verb = "Would file"
	}
	fmt.Fprintln(w, cli.FormatSuccess(fmt.Sprintf("%s %d of %d files", verb, moved, len(paths))))

	if failed > 0 {
		return fmt.Errorf("%d files could not be filed", failed)
	}
	return nil
}
