package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the settings of the edusiap command line tool.
type Config struct {
	DBPath        string        `env:"EDUSIAP_DB_PATH" envDefault:"edusiap.db"`
	Persistence   string        `env:"EDUSIAP_PERSISTENCE" envDefault:"sync"`
	FlushInterval time.Duration `env:"EDUSIAP_FLUSH_INTERVAL" envDefault:"1s"`
	HashCost      int           `env:"EDUSIAP_HASH_COST" envDefault:"10"`
	CompactAt     int64         `env:"EDUSIAP_COMPACT_AT" envDefault:"4194304"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"console"`
	LogFile      string `env:"LOG_FILE"`
	LogMaxSizeMB int    `env:"LOG_MAX_SIZE_MB" envDefault:"10"`
	LogMaxFiles  int    `env:"LOG_MAX_FILES" envDefault:"5"`
}

// Load reads an optional env file, then the process environment.
// A missing env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "could not load %s", f)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "could not parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("EDUSIAP_DB_PATH must not be empty")
	}

	switch c.Persistence {
	case "sync", "async":
	default:
		return errors.Errorf("EDUSIAP_PERSISTENCE must be sync or async, got %q", c.Persistence)
	}

	if c.FlushInterval <= 0 {
		return errors.Errorf("EDUSIAP_FLUSH_INTERVAL must be positive, got %s", c.FlushInterval)
	}

	if c.CompactAt <= 0 {
		return errors.Errorf("EDUSIAP_COMPACT_AT must be positive, got %d", c.CompactAt)
	}

	if c.HashCost < bcrypt.MinCost || c.HashCost > bcrypt.MaxCost {
		return errors.Errorf("EDUSIAP_HASH_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.HashCost)
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "LOG_LEVEL")
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return errors.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}

	return nil
}

// Logger builds the zap logger described by the LOG_* settings.
// Without LOG_FILE logs go to stderr so command output on stdout stays clean.
func (c *Config) Logger() (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "LOG_LEVEL")
	}

	if c.LogFile != "" {
		return c.fileLogger(lvl)
	}

	z := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		z = zap.NewDevelopmentConfig()
	}

	z.Level = zap.NewAtomicLevelAt(lvl)
	z.OutputPaths = []string{"stderr"}
	z.ErrorOutputPaths = []string{"stderr"}

	lg, err := z.Build()
	if err != nil {
		return nil, errors.Wrap(err, "could not build logger")
	}

	return lg, nil
}

func (c *Config) fileLogger(lvl zapcore.Level) (*zap.Logger, error) {
	w, err := newRotatingWriter(c.LogFile, c.LogMaxSizeMB, c.LogMaxFiles)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	enc := zapcore.NewJSONEncoder(encCfg)
	if c.LogFormat == "console" {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl)), nil
}

func newRotatingWriter(file string, maxSizeMB, maxFiles int) (*lumberjack.Logger, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxFiles <= 0 {
		maxFiles = 5
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
		return nil, errors.Wrap(err, "could not create log directory")
	}

	return &lumberjack.Logger{
		Filename:   file,
		MaxSize:    maxSizeMB,
		MaxBackups: maxFiles,
	}, nil
}
