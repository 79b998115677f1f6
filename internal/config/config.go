package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"fareboard/internal/core"
	"fareboard/internal/log"
)

type Config struct {
	// HTTP Server
	Port string `env:"PORT" envDefault:"8081"`

	// Record storage
	DataBackend  string `env:"DATA_BACKEND" envDefault:"csv"`
	DataDir      string `env:"DATA_DIR" envDefault:"./data"`
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/fareboard.db"`

	// Owner resolution
	DefaultOwner  string `env:"DEFAULT_OWNER" envDefault:"default"`
	AuthJWTSecret string `env:"AUTH_JWT_SECRET"`

	// Record rules
	ExpenseTypes     []string `env:"EXPENSE_TYPES" envSeparator:","`
	ExpenseTypesFile string   `env:"EXPENSE_TYPES_FILE"`
	TripCapacity     int      `env:"TRIP_CAPACITY" envDefault:"11"`

	// AMQP
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"fareboard"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"record_events"`

	// Google Sheets mirror
	GoogleSpreadsheetID      string `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleJourneysSheet      string `env:"GOOGLE_JOURNEYS_SHEET" envDefault:"Journeys"`
	GoogleExpensesSheet      string `env:"GOOGLE_EXPENSES_SHEET" envDefault:"Expenses"`

	// HTTP behaviour
	ReportCacheTTL     time.Duration `env:"REPORT_CACHE_TTL" envDefault:"5m"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

var validBackends = []string{BackendCSV, BackendSQLite, BackendMemory}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadFrom reads the configuration from vars instead of the process
// environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case BackendCSV:
		if strings.TrimSpace(c.DataDir) == "" {
			errors = append(errors, "data directory cannot be empty when using csv backend")
		}
	case BackendSQLite:
		if strings.TrimSpace(c.SQLiteDBPath) == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if err := core.OwnerID(c.DefaultOwner).Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid default owner '%s'", c.DefaultOwner))
	}
	if c.AuthJWTSecret != "" && len(c.AuthJWTSecret) < 16 {
		errors = append(errors, "auth JWT secret must be at least 16 characters")
	}

	if c.ExpenseTypesFile != "" {
		if _, err := os.Stat(c.ExpenseTypesFile); err != nil {
			errors = append(errors, fmt.Sprintf("expense types file '%s' is not readable: %v", c.ExpenseTypesFile, err))
		}
	}
	if c.TripCapacity < 1 {
		errors = append(errors, fmt.Sprintf("invalid trip capacity %d: must be at least 1", c.TripCapacity))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ReportCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must not be negative", c.ReportCacheTTL))
	}
	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateMirror checks the settings the Sheets mirror worker needs on top
// of Validate.
func (c *Config) ValidateMirror() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the mirror worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for the mirror worker")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if c.GoogleJourneysSheet == "" || c.GoogleExpensesSheet == "" {
		errors = append(errors, "sheet names for journeys and expenses cannot be empty")
	}
	if len(errors) > 0 {
		return fmt.Errorf("mirror configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ExpenseTypeSet returns the default expense types extended with
// EXPENSE_TYPES and the lines of EXPENSE_TYPES_FILE.
func (c *Config) ExpenseTypeSet() (*core.ExpenseTypes, error) {
	extra := append([]string(nil), c.ExpenseTypes...)
	if c.ExpenseTypesFile != "" {
		f, err := os.Open(c.ExpenseTypesFile)
		if err != nil {
			return nil, fmt.Errorf("open expense types file: %w", err)
		}
		defer f.Close()
		lines, err := core.ReadExpenseTypeLines(f)
		if err != nil {
			return nil, err
		}
		extra = append(extra, lines...)
	}
	return core.NewExpenseTypes(extra...), nil
}

// Owner returns the default owner as an OwnerID.
func (c *Config) Owner() core.OwnerID {
	return core.OwnerID(c.DefaultOwner)
}

// AMQPEnabled reports whether record events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}
