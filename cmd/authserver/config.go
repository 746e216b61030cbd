package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/authservice/internal/logger"
)

const (
	defaultListenAddr   = "localhost:5000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProd
	defaultAccessTTL    = 15 * time.Minute
	defaultRefreshDays  = 7
	defaultBaseURL      = "http://localhost:5000"
	defaultSMTPPort     = 587
	defaultFromEmail    = "no-reply@localhost"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Write logs to this file too, rotated by size. Stderr only if empty
	LogFile string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key to sign access and refresh tokens
	// Required: changing it invalidates every issued token
	SecretKey string

	// Token lifetimes
	AccessTTL   time.Duration
	RefreshDays int

	// Public service address, reset links point to it
	BaseURL string

	// Outbound mail. Reset links are only logged if host is empty
	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
	FromEmail string

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		Environment: defaultEnvironment,
		AccessTTL:   defaultAccessTTL,
		RefreshDays: defaultRefreshDays,
		BaseURL:     defaultBaseURL,
		SMTPPort:    defaultSMTPPort,
		FromEmail:   defaultFromEmail,
	}
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshDays) * 24 * time.Hour
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":              setString(&c.ListenAddr),
		"DATABASE_URI":             setString(&c.DatabaseDSN),
		"JWT_SECRET":               setString(&c.SecretKey),
		"JWT_ACCESS_EXPIRES":       setDuration(&c.AccessTTL),
		"JWT_REFRESH_EXPIRES_DAYS": setInt(&c.RefreshDays),
		"BASE_URL":                 setString(&c.BaseURL),
		"SMTP_HOST":                setString(&c.SMTPHost),
		"SMTP_PORT":                setInt(&c.SMTPPort),
		"SMTP_USER":                setString(&c.SMTPUser),
		"SMTP_PASS":                setString(&c.SMTPPass),
		"FROM_EMAIL":               setString(&c.FromEmail),
		"LOG_LEVEL":                setString(&c.LogLevel),
		"LOG_FILE":                 setString(&c.LogFile),
		"ENVIRONMENT":              setString(&c.Environment),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("authserver", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key to sign tokens")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.IntVar(&c.RefreshDays, "refresh-days", c.RefreshDays, "Refresh token lifetime in days")
	fs.StringVarP(&c.BaseURL, "base-url", "b", c.BaseURL, "Public service address used in reset links")
	fs.StringVar(&c.SMTPHost, "smtp-host", c.SMTPHost, "SMTP server host, reset links are logged if empty")
	fs.IntVar(&c.SMTPPort, "smtp-port", c.SMTPPort, "SMTP server port")
	fs.StringVar(&c.SMTPUser, "smtp-user", c.SMTPUser, "SMTP user")
	fs.StringVar(&c.SMTPPass, "smtp-pass", c.SMTPPass, "SMTP password")
	fs.StringVar(&c.FromEmail, "from-email", c.FromEmail, "Sender address of reset emails")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Write logs to the file too")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

// Check the config is complete, the service must not start without secret key
func (c *Config) Validate() error {
	var errs []error

	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required, set JWT_SECRET"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database is required, set DATABASE_URI"))
	}
	if c.AccessTTL <= 0 {
		errs = append(errs, fmt.Errorf("access token lifetime must be positive, got %s", c.AccessTTL))
	}
	if c.RefreshDays <= 0 {
		errs = append(errs, fmt.Errorf("refresh token lifetime must be positive, got %d days", c.RefreshDays))
	}

	return errors.Join(errs...)
}
