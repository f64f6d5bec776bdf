package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del backtest.
type Config struct {
	Pair         PairConfig         `yaml:"pair"`
	Data         DataConfig         `yaml:"data"`
	OANDA        OANDAConfig        `yaml:"oanda"`
	Yahoo        YahooConfig        `yaml:"yahoo"`
	Hedge        HedgeConfig        `yaml:"hedge"`
	Stationarity StationarityConfig `yaml:"stationarity"`
	Backtest     BacktestConfig     `yaml:"backtest"`
	Storage      StorageConfig      `yaml:"storage"`
	API          APIConfig          `yaml:"api"`
	Log          LogConfig          `yaml:"log"`
}

// PairConfig define las dos patas y cómo llevarlas a una misma moneda.
type PairConfig struct {
	LegA         LegConfig         `yaml:"leg_a"`
	LegB         LegConfig         `yaml:"leg_b"`
	FX           map[string]string `yaml:"fx"` // ticker de la pata -> ticker FX que la convierte
	BaseCurrency string            `yaml:"base_currency"`
	Interval     string            `yaml:"interval"`
	Start        string            `yaml:"start"` // 2006-01-02 o RFC3339
	End          string            `yaml:"end"`   // vacío = ahora
}

// LegConfig identifica una pata. Path y las columnas solo aplican al provider csv.
type LegConfig struct {
	Ticker          string `yaml:"ticker"`
	Path            string `yaml:"path"`
	PriceColumn     string `yaml:"price_column"`
	TimestampColumn string `yaml:"timestamp_column"`
	Currency        string `yaml:"currency"`
}

// DataConfig elige la fuente de precios.
type DataConfig struct {
	Provider string               `yaml:"provider"` // csv | oanda | yahoo
	Files    map[string]LegConfig `yaml:"files"`    // csv: series extra (FX) por ticker
}

// OANDAConfig configura el provider OANDA v20.
type OANDAConfig struct {
	APIKey               string            `yaml:"api_key"` // mejor por .env: OANDA_API_KEY
	Environment          string            `yaml:"environment"`
	TimeoutSeconds       int               `yaml:"timeout_seconds"`
	InstrumentCurrencies map[string]string `yaml:"instrument_currencies"`
}

// YahooConfig configura el provider de Yahoo Finance.
type YahooConfig struct {
	BaseURL    string `yaml:"base_url"`
	AutoAdjust bool   `yaml:"auto_adjust"`
}

// HedgeConfig controla la regresión del hedge ratio.
type HedgeConfig struct {
	Intercept *bool `yaml:"intercept"` // nil = true
}

// StationarityConfig controla el gate ADF.
type StationarityConfig struct {
	MaxPValue float64 `yaml:"max_p_value"`
	Enforce   bool    `yaml:"enforce"` // false = solo warning
}

// BacktestConfig controla el barrido de ventanas.
type BacktestConfig struct {
	Windows         []int           `yaml:"windows"`
	NumStd          float64         `yaml:"num_std"`
	PerWindowNumStd map[int]float64 `yaml:"per_window_num_std"`
	Fee             *float64        `yaml:"fee"` // nil = 0.1; 0 es válido
	Workers         int             `yaml:"workers"`
	SkipReentry     bool            `yaml:"skip_reentry"`
}

// StorageConfig controla dónde se persisten las corridas.
type StorageConfig struct {
	DSN           string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
	RetentionDays int    `yaml:"retention_days"`
}

// APIConfig controla el servidor HTTP (-serve).
type APIConfig struct {
	Port        int  `yaml:"port"`
	ReleaseMode bool `yaml:"release_mode"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Intercept devuelve si la regresión del hedge lleva término independiente.
func (c *Config) Intercept() bool {
	return c.Hedge.Intercept == nil || *c.Hedge.Intercept
}

// Fee devuelve el fee por pata.
func (c *Config) Fee() float64 {
	if c.Backtest.Fee == nil {
		return 0.1
	}
	return *c.Backtest.Fee
}

// Retention devuelve la retención del storage como time.Duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionDays) * 24 * time.Hour
}

// OANDATimeout devuelve el timeout HTTP del provider OANDA.
func (c *Config) OANDATimeout() time.Duration {
	return time.Duration(c.OANDA.TimeoutSeconds) * time.Second
}

// Range devuelve [start, end] del backtest. Sin end, usa now.
func (c *Config) Range(now time.Time) (start, end time.Time, err error) {
	end = now.UTC()
	if c.Pair.End != "" {
		if end, err = parseDate(c.Pair.End); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("config: pair.end: %w", err)
		}
	}
	if c.Pair.Start == "" {
		return time.Time{}, end, nil
	}
	if start, err = parseDate(c.Pair.Start); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("config: pair.start: %w", err)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("config: pair.start %s is not before pair.end %s",
			start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return start, end, nil
}

// Validate revisa los valores que el backtest no puede corregir solo.
func (c *Config) Validate() error {
	var problems []string
	if c.Pair.LegA.Ticker == "" || c.Pair.LegB.Ticker == "" {
		problems = append(problems, "pair.leg_a.ticker and pair.leg_b.ticker are required")
	}
	switch c.Data.Provider {
	case "csv":
		for _, leg := range []LegConfig{c.Pair.LegA, c.Pair.LegB} {
			if leg.Path == "" && c.Data.Files[leg.Ticker].Path == "" {
				problems = append(problems, fmt.Sprintf("csv provider needs a path for %q", leg.Ticker))
			}
		}
	case "oanda":
		if c.OANDA.APIKey == "" {
			problems = append(problems, "oanda provider needs an API key (OANDA_API_KEY)")
		}
	case "yahoo":
	default:
		problems = append(problems, fmt.Sprintf("data.provider %q must be csv, oanda or yahoo", c.Data.Provider))
	}
	if len(c.Backtest.Windows) == 0 {
		problems = append(problems, "backtest.windows is empty")
	}
	for _, w := range c.Backtest.Windows {
		if w < 2 {
			problems = append(problems, fmt.Sprintf("backtest.windows: %d must be >= 2", w))
		}
	}
	if !(c.Backtest.NumStd > 0) {
		problems = append(problems, fmt.Sprintf("backtest.num_std %v must be > 0", c.Backtest.NumStd))
	}
	for w, k := range c.Backtest.PerWindowNumStd {
		if !(k > 0) {
			problems = append(problems, fmt.Sprintf("backtest.per_window_num_std[%d] %v must be > 0", w, k))
		}
	}
	if c.Fee() < 0 {
		problems = append(problems, fmt.Sprintf("backtest.fee %v must be >= 0", c.Fee()))
	}
	if c.Stationarity.MaxPValue <= 0 || c.Stationarity.MaxPValue >= 1 {
		problems = append(problems, fmt.Sprintf("stationarity.max_p_value %v must be in (0, 1)", c.Stationarity.MaxPValue))
	}
	if _, _, err := c.Range(time.Now()); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("config.Validate: %s", strings.Join(problems, "; "))
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("OANDA_API_KEY"); v != "" {
		cfg.OANDA.APIKey = v
	}
	if v := os.Getenv("OANDA_ENVIRONMENT"); v != "" {
		cfg.OANDA.Environment = v
	}
	if v := os.Getenv("STATARB_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Pair.BaseCurrency == "" {
		cfg.Pair.BaseCurrency = "USD"
	}
	cfg.Pair.BaseCurrency = strings.ToUpper(cfg.Pair.BaseCurrency)
	if cfg.Pair.Interval == "" {
		cfg.Pair.Interval = "1d"
	}
	if cfg.Data.Provider == "" {
		cfg.Data.Provider = "csv"
	}
	if cfg.OANDA.Environment == "" {
		cfg.OANDA.Environment = "practice"
	}
	if cfg.OANDA.TimeoutSeconds <= 0 {
		cfg.OANDA.TimeoutSeconds = 30
	}
	if cfg.Stationarity.MaxPValue == 0 {
		cfg.Stationarity.MaxPValue = 0.05
	}
	if len(cfg.Backtest.Windows) == 0 {
		cfg.Backtest.Windows = []int{10, 20, 40}
	}
	if cfg.Backtest.NumStd == 0 {
		cfg.Backtest.NumStd = 1.5
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "statarb.db"
	}
	if cfg.Storage.RetentionDays == 0 {
		cfg.Storage.RetentionDays = 90
	}
	if cfg.API.Port <= 0 {
		cfg.API.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse %q as a date", s)
	}
	return t, nil
}
