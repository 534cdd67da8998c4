package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Veraticus/the-ledger-must-balance/internal/config"
	"github.com/Veraticus/the-ledger-must-balance/internal/importer"
	"github.com/Veraticus/the-ledger-must-balance/internal/price"
	"github.com/Veraticus/the-ledger-must-balance/internal/storage"
	"github.com/spf13/viper"
)

// collectFiles expands globs and walks directories, returning the regular
// files found in sorted order. Hidden files inside directories are skipped.
func collectFiles(args []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		if _, ok := seen[path]; !ok {
			seen[path] = struct{}{}
			files = append(files, path)
		}
	}

	for _, pattern := range args {
		pattern = config.ExpandPath(pattern)
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			slog.Warn("No files found matching pattern", "pattern", pattern)
			continue
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", match, err)
			}
			if !info.IsDir() {
				add(match)
				continue
			}
			err = filepath.WalkDir(match, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				hidden := path != match && strings.HasPrefix(d.Name(), ".")
				switch {
				case d.IsDir() && hidden:
					return filepath.SkipDir
				case d.Type().IsRegular() && !hidden:
					add(path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("failed to walk %s: %w", match, err)
			}
		}
	}

	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found")
	}
	return files, nil
}

// loadImporters builds the importers declared in the configuration.
func loadImporters() ([]importer.Importer, error) {
	specs, err := config.LoadImporters(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return importer.BuildAll(specs)
}

// openPriceClient creates an Alpha Vantage client backed by the SQLite
// price cache. The returned cache must be closed by the caller.
func openPriceClient(ctx context.Context) (*price.Client, *storage.PriceCache, config.Price, error) {
	settings, err := config.LoadPrice(viper.GetViper())
	if err != nil {
		return nil, nil, settings, err
	}

	cache, err := storage.NewPriceCache(settings.CachePath())
	if err != nil {
		return nil, nil, settings, err
	}
	if err := cache.Migrate(ctx); err != nil {
		_ = cache.Close()
		return nil, nil, settings, fmt.Errorf("failed to run migrations: %w", err)
	}

	client, err := price.NewClient(settings.APIKey,
		price.WithCache(cache),
		price.WithTTL(settings.TTL),
	)
	if err != nil {
		_ = cache.Close()
		return nil, nil, settings, err
	}
	return client, cache, settings, nil
}
