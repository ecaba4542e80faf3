package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/usersvc/internal/executor"
	"github.com/nkiryanov/usersvc/internal/logger"
	"github.com/nkiryanov/usersvc/internal/repository"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultMaxConns     = 10
	defaultRateBurst    = 50
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to: postgres://... or sqlite://path
	DatabaseDSN string

	// Max open connections to the database
	DatabaseMaxConns int

	// Executor workers and queue capacity
	Workers   int
	QueueSize int

	// How id of created user is obtained: 'returning' or 'requery'
	IdentityMode string

	// Server wide requests per second, 0 disables limiter
	RateLimit float64
	RateBurst int

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:         defaultLoggingLevel,
		ListenAddr:       defaultListenAddr,
		DatabaseMaxConns: defaultMaxConns,
		Workers:          executor.DefaultWorkers,
		QueueSize:        executor.DefaultQueueSize,
		IdentityMode:     string(repository.IdentityReturning),
		RateBurst:        defaultRateBurst,
		Environment:      defaultEnvironment,
	}
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
			v, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = v
			return nil
		}
	}
	setFloat := func(o *float64) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return err
			}
			*o = v
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"DATABASE_MAX_CONNS": setInt(&c.DatabaseMaxConns),
		"WORKERS":            setInt(&c.Workers),
		"QUEUE_SIZE":         setInt(&c.QueueSize),
		"IDENTITY_MODE":      setString(&c.IdentityMode),
		"RATE_LIMIT":         setFloat(&c.RateLimit),
		"RATE_BURST":         setInt(&c.RateBurst),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("usersvc", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string (postgres://... or sqlite://path)")
	fs.IntVarP(&c.DatabaseMaxConns, "db-max-conns", "c", c.DatabaseMaxConns, "Max open database connections")
	fs.IntVarP(&c.Workers, "workers", "w", c.Workers, "Number of executor workers")
	fs.IntVarP(&c.QueueSize, "queue-size", "q", c.QueueSize, "Executor queue capacity")
	fs.StringVarP(&c.IdentityMode, "identity-mode", "i", c.IdentityMode, "How id of created user is obtained (returning, requery)")
	fs.Float64VarP(&c.RateLimit, "rate-limit", "r", c.RateLimit, "Requests per second, 0 disables limit")
	fs.IntVarP(&c.RateBurst, "rate-burst", "b", c.RateBurst, "Requests burst allowed over rate limit")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

// Validate reports first option that makes no sense
func (c *Config) Validate() error {
	switch {
	case c.DatabaseDSN == "":
		return errors.New("database DSN is required")
	case c.DatabaseMaxConns <= 0:
		return fmt.Errorf("database max conns must be positive, got %d", c.DatabaseMaxConns)
	case c.Workers <= 0:
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	case c.QueueSize < 0:
		return fmt.Errorf("queue size must not be negative, got %d", c.QueueSize)
	case c.RateLimit < 0:
		return fmt.Errorf("rate limit must not be negative, got %v", c.RateLimit)
	}

	if _, err := repository.ParseIdentityMode(c.IdentityMode); err != nil {
		return err
	}

	return nil
}
