package main

import (
	"fmt"

	"github.com/alejandrodnm/statarb/config"
	"github.com/alejandrodnm/statarb/internal/adapters/csvdata"
	"github.com/alejandrodnm/statarb/internal/adapters/oanda"
	"github.com/alejandrodnm/statarb/internal/adapters/yahoo"
	"github.com/alejandrodnm/statarb/internal/ports"
)

// buildProvider elige la fuente de precios según data.provider.
func buildProvider(cfg *config.Config) (ports.PriceProvider, error) {
	switch cfg.Data.Provider {
	case "csv":
		return csvdata.New(csvFiles(cfg)), nil
	case "oanda":
		return oanda.New(oanda.Config{
			APIKey:               cfg.OANDA.APIKey,
			Environment:          cfg.OANDA.Environment,
			Timeout:              cfg.OANDATimeout(),
			InstrumentCurrencies: cfg.OANDA.InstrumentCurrencies,
		})
	case "yahoo":
		return yahoo.New(yahoo.Config{
			BaseURL:    cfg.Yahoo.BaseURL,
			AutoAdjust: cfg.Yahoo.AutoAdjust,
		}), nil
	default:
		return nil, fmt.Errorf("unknown data provider %q", cfg.Data.Provider)
	}
}

// csvFiles junta las patas y las series extra (FX) en un solo mapa ticker -> archivo.
func csvFiles(cfg *config.Config) map[string]csvdata.FileSpec {
	files := make(map[string]csvdata.FileSpec, len(cfg.Data.Files)+2)
	for ticker, f := range cfg.Data.Files {
		files[ticker] = fileSpec(f)
	}
	for _, leg := range []config.LegConfig{cfg.Pair.LegA, cfg.Pair.LegB} {
		if leg.Path != "" {
			files[leg.Ticker] = fileSpec(leg)
		}
	}
	return files
}

func fileSpec(leg config.LegConfig) csvdata.FileSpec {
	return csvdata.FileSpec{
		Path:            leg.Path,
		PriceColumn:     leg.PriceColumn,
		TimestampColumn: leg.TimestampColumn,
		Currency:        leg.Currency,
	}
}
