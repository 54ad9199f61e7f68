package config

import (
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Notion NotionConfig `yaml:"notion" mapstructure:"notion"`
	OCR    OCRConfig    `yaml:"ocr" mapstructure:"ocr"`
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures where templates and test results live.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	TemplateDir string `yaml:"template_dir" mapstructure:"template_dir"`
}

// NotionConfig holds Notion API credentials and the template database id.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	TemplateDB string `yaml:"template_db" mapstructure:"template_db"`
}

// OCRConfig configures document text extraction.
type OCRConfig struct {
	Provider      string  `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string  `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string  `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string  `yaml:"mistral_model" mapstructure:"mistral_model"`
	MistralRPS    float64 `yaml:"mistral_rps" mapstructure:"mistral_rps"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
	DocumentDir   string  `yaml:"document_dir" mapstructure:"document_dir"`
	Normalize     bool    `yaml:"normalize" mapstructure:"normalize"`
}

// EngineConfig configures template matching.
type EngineConfig struct {
	Workers             int  `yaml:"workers" mapstructure:"workers"`
	ClassifyTimeoutSecs int  `yaml:"classify_timeout_secs" mapstructure:"classify_timeout_secs"`
	IncludeInactive     bool `yaml:"include_inactive" mapstructure:"include_inactive"`
}

// WorkerCount returns the worker pool size, defaulting to the number of CPUs.
func (c EngineConfig) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml, if present, and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path and environment. An empty path
// falls back to an optional ./config.yaml; an explicit path must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	// Environment
	v.SetEnvPrefix("INVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "invoice-templates.db")
	v.SetDefault("store.template_dir", "templates")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.template_db", "")
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_api_key", "")
	v.SetDefault("ocr.mistral_model", "mistral-ocr-latest")
	v.SetDefault("ocr.mistral_rps", 2.0)
	v.SetDefault("ocr.max_retries", 3)
	v.SetDefault("ocr.document_dir", ".")
	v.SetDefault("ocr.normalize", true)
	v.SetDefault("engine.workers", 0)
	v.SetDefault("engine.classify_timeout_secs", 30)
	v.SetDefault("engine.include_inactive", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "store", "ocr" and "sync".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "store":
		problems = append(problems, c.validateStore()...)
	case "ocr":
		problems = append(problems, c.validateOCR()...)
	case "sync":
		problems = append(problems, c.validateStore()...)
		if c.Notion.Token == "" {
			problems = append(problems, "notion.token is required")
		}
		if c.Notion.TemplateDB == "" {
			problems = append(problems, "notion.template_db is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Engine.Workers < 0 || c.Engine.Workers > 256 {
		problems = append(problems, "engine.workers must be between 0 and 256")
	}
	if c.Engine.ClassifyTimeoutSecs < 0 {
		problems = append(problems, "engine.classify_timeout_secs must be >= 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var problems []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	case "dir":
		if c.Store.TemplateDir == "" {
			problems = append(problems, "store.template_dir is required")
		}
	default:
		problems = append(problems, "store.driver must be sqlite, postgres or dir")
	}
	return problems
}

func (c *Config) validateOCR() []string {
	var problems []string
	switch c.OCR.Provider {
	case "local":
		if c.OCR.PdfToTextPath == "" {
			problems = append(problems, "ocr.pdftotext_path is required")
		}
	case "native":
	case "mistral":
		if c.OCR.MistralKey == "" {
			problems = append(problems, "ocr.mistral_api_key is required")
		}
		if c.OCR.MistralRPS <= 0 {
			problems = append(problems, "ocr.mistral_rps must be > 0")
		}
	default:
		problems = append(problems, "ocr.provider must be local, native or mistral")
	}
	if c.OCR.MaxRetries < 0 {
		problems = append(problems, "ocr.max_retries must be >= 0")
	}
	return problems
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
