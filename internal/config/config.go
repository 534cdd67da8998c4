package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/Veraticus/the-ledger-must-balance/internal/importer"
	"github.com/Veraticus/the-ledger-must-balance/internal/price"
	"github.com/Veraticus/the-ledger-must-balance/internal/storage"
	"github.com/spf13/viper"
)

// CacheFile is the price cache database name inside the cache directory.
const CacheFile = AppName + "-prices.db"

// Price holds the price source settings.
type Price struct {
	APIKey   string
	CacheDir string
	Currency string
	TTL      time.Duration
}

// CachePath is the price cache database location.
func (p Price) CachePath() string {
	return filepath.Join(ExpandPath(p.CacheDir), CacheFile)
}

// LoadImporters decodes the importers list. At least one importer must be
// configured.
func LoadImporters(v *viper.Viper) ([]importer.Spec, error) {
	var specs []importer.Spec
	if err := v.UnmarshalKey("importers", &specs); err != nil {
		return nil, fmt.Errorf("%w: importers: %w", common.ErrInvalidConfig, err)
	}
	if len(specs) == 0 {
		return nil, common.NewUserError(
			"No importers configured; add an importers list to "+configName(v),
			common.ErrMissingConfig)
	}
	for i := range specs {
		specs[i].Type = strings.ToLower(strings.TrimSpace(specs[i].Type))
	}
	return specs, nil
}

// LoadPrice reads price settings in this order of precedence: viper
// (config file or BALANCE_ env vars), ALPHAVANTAGE_API_KEY for the key,
// then defaults.
func LoadPrice(v *viper.Viper) (Price, error) {
	p := Price{
		APIKey:   v.GetString("price.api_key"),
		CacheDir: v.GetString("price.cache_dir"),
		Currency: v.GetString("price.currency"),
		TTL:      v.GetDuration("price.ttl"),
	}

	if p.APIKey == "" {
		p.APIKey = os.Getenv(price.EnvAPIKey)
	}
	if p.CacheDir == "" {
		p.CacheDir = os.TempDir()
	}
	if p.Currency == "" {
		p.Currency = price.DefaultCurrency
	}
	if p.TTL == 0 {
		p.TTL = storage.DefaultTTL
	}

	if p.TTL < 0 {
		return Price{}, fmt.Errorf("%w: price.ttl must be positive, got %s", common.ErrInvalidConfig, p.TTL)
	}
	p.Currency = strings.ToUpper(p.Currency)
	return p, nil
}

// Documents is the root folder the file command moves documents into.
func Documents(v *viper.Viper) string {
	return ExpandPath(v.GetString("documents"))
}

func configName(v *viper.Viper) string {
	if f := v.ConfigFileUsed(); f != "" {
		return f
	}
	return "the configuration file"
}
