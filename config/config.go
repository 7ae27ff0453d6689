package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de arvbot.
type Config struct {
	Poller     PollerConfig     `yaml:"poller"`
	Investment InvestmentConfig `yaml:"investment"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Storage    StorageConfig    `yaml:"storage"`
	HTTP       HTTPConfig       `yaml:"http"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Log        LogConfig        `yaml:"log"`
}

// PollerConfig controla el ciclo de polling y su lease single-flight.
type PollerConfig struct {
	IntervalSeconds     int    `yaml:"interval_seconds"      env:"ARVBOT_POLL_INTERVAL_SECONDS"`
	LeaseTTLSeconds     int    `yaml:"lease_ttl_seconds"     env:"ARVBOT_POLL_LEASE_TTL_SECONDS"`
	CycleTimeoutSeconds int    `yaml:"cycle_timeout_seconds" env:"ARVBOT_POLL_CYCLE_TIMEOUT_SECONDS"`
	FlagID              string `yaml:"flag_id"               env:"ARVBOT_POLL_FLAG_ID"`
}

// InvestmentConfig describe el mercado buscado y el stake de cada apuesta.
type InvestmentConfig struct {
	Stake           float64  `yaml:"stake"             env:"ARVBOT_STAKE"`
	EventTypeID     string   `yaml:"event_type_id"`
	MarketTypeCodes []string `yaml:"market_type_codes"`
	BSPOnly         *bool    `yaml:"bsp_only"`
	WindowHours     int      `yaml:"window_hours"`
}

// ExchangeConfig contiene endpoints y credenciales de Betfair.
type ExchangeConfig struct {
	IdentityBase string `yaml:"identity_base"`
	BettingBase  string `yaml:"betting_base"`
	Username     string `yaml:"username"   env:"BETFAIR_USERNAME"`
	Password     string `yaml:"password"   env:"BETFAIR_PASSWORD"`
	AppKey       string `yaml:"app_key"    env:"BETFAIR_APP_KEY"`
	CertPath     string `yaml:"cert_path"  env:"BETFAIR_CERT_PATH"`
	KeyPath      string `yaml:"key_path"   env:"BETFAIR_KEY_PATH"`
	SSMPrefix    string `yaml:"ssm_prefix" env:"ARVBOT_SSM_PREFIX"` // credenciales desde SSM Parameter Store
	Paper        bool   `yaml:"paper"      env:"ARVBOT_PAPER"`      // exchange simulado, sin dinero real
}

// StorageConfig controla dónde se persisten las sesiones.
type StorageConfig struct {
	Driver              string `yaml:"driver"                env:"ARVBOT_STORAGE_DRIVER"` // sqlite | dynamodb
	DSN                 string `yaml:"dsn"                   env:"ARVBOT_STORAGE_DSN"`    // ruta al archivo SQLite, o ":memory:"
	DynamoDBTable       string `yaml:"dynamodb_table"        env:"ARVBOT_DYNAMODB_TABLE"`
	DynamoDBStatusIndex string `yaml:"dynamodb_status_index" env:"ARVBOT_DYNAMODB_STATUS_INDEX"`
}

// HTTPConfig controla la API HTTP.
type HTTPConfig struct {
	Addr string `yaml:"addr" env:"ARVBOT_HTTP_ADDR"`
}

// TelegramConfig habilita las alertas de ciclo. Vacío = deshabilitado.
type TelegramConfig struct {
	Token  string `yaml:"token"   env:"ARVBOT_TELEGRAM_TOKEN"`
	ChatID int64  `yaml:"chat_id" env:"ARVBOT_TELEGRAM_CHAT_ID"`
}

// TelemetryConfig controla la exportación de trazas OTLP. Sin endpoint no se exporta.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"ARVBOT_OTEL_ENDPOINT"`
	ServiceName  string `yaml:"service_name"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"`  // debug | info | warn | error
	Format string `yaml:"format" env:"LOG_FORMAT"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Un path vacío o inexistente usa solo variables de entorno y defaults.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// sin archivo: env + defaults
		case err != nil:
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse env: %w", err)
	}
	setDefaults(&cfg)

	return &cfg, nil
}

// PollInterval devuelve el intervalo de polling como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poller.IntervalSeconds) * time.Second
}

// LeaseTTL devuelve cuánto dura el lease del flag de polling.
func (c *Config) LeaseTTL() time.Duration {
	return time.Duration(c.Poller.LeaseTTLSeconds) * time.Second
}

// CycleTimeout acota la duración de un ciclo completo.
func (c *Config) CycleTimeout() time.Duration {
	return time.Duration(c.Poller.CycleTimeoutSeconds) * time.Second
}

// MarketWindow es el horizonte en el que debe empezar el mercado elegido.
func (c *Config) MarketWindow() time.Duration {
	return time.Duration(c.Investment.WindowHours) * time.Hour
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Poller.IntervalSeconds <= 0 {
		cfg.Poller.IntervalSeconds = 60
	}
	if cfg.Poller.LeaseTTLSeconds <= 0 {
		cfg.Poller.LeaseTTLSeconds = 600
	}
	if cfg.Poller.CycleTimeoutSeconds <= 0 {
		cfg.Poller.CycleTimeoutSeconds = 300
	}
	if cfg.Poller.FlagID == "" {
		cfg.Poller.FlagID = "BetfairInvestmentPoller"
	}
	if cfg.Investment.Stake <= 0 {
		cfg.Investment.Stake = 1.0
	}
	if cfg.Investment.EventTypeID == "" {
		cfg.Investment.EventTypeID = "7" // horse racing
	}
	if len(cfg.Investment.MarketTypeCodes) == 0 {
		cfg.Investment.MarketTypeCodes = []string{"WIN"}
	}
	if cfg.Investment.BSPOnly == nil {
		bsp := true
		cfg.Investment.BSPOnly = &bsp
	}
	if cfg.Investment.WindowHours <= 0 {
		cfg.Investment.WindowHours = 24
	}
	if cfg.Exchange.IdentityBase == "" {
		cfg.Exchange.IdentityBase = "https://identitysso-cert.betfair.com"
	}
	if cfg.Exchange.BettingBase == "" {
		cfg.Exchange.BettingBase = "https://api.betfair.com/exchange/betting/rest/v1.0"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "arvbot.db"
	}
	if cfg.Storage.DynamoDBTable == "" {
		cfg.Storage.DynamoDBTable = "arvbot"
	}
	if cfg.Storage.DynamoDBStatusIndex == "" {
		cfg.Storage.DynamoDBStatusIndex = "status-index"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "arvbot"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
