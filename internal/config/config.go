package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Raster    RasterConfig    `yaml:"raster" mapstructure:"raster"`
	Process   ProcessConfig   `yaml:"process" mapstructure:"process"`
	Review    ReviewConfig    `yaml:"review" mapstructure:"review"`
	Runs      RunsConfig      `yaml:"runs" mapstructure:"runs"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings for the remote extractor.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	VisionModel string `yaml:"vision_model" mapstructure:"vision_model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OCRConfig configures the local recognition engine.
type OCRConfig struct {
	Languages  []string `yaml:"languages" mapstructure:"languages"`
	MaxTextLen int      `yaml:"max_text_len" mapstructure:"max_text_len"`
}

// RasterConfig configures PDF-to-image conversion.
type RasterConfig struct {
	PdfToPpmPath string `yaml:"pdftoppm_path" mapstructure:"pdftoppm_path"`
	DPI          int    `yaml:"dpi" mapstructure:"dpi"`
}

// ProcessConfig configures batch extraction behavior.
type ProcessConfig struct {
	RemoteEnabled bool   `yaml:"remote_enabled" mapstructure:"remote_enabled"`
	FrontOnly     bool   `yaml:"front_only" mapstructure:"front_only"`
	DebugDir      string `yaml:"debug_dir" mapstructure:"debug_dir"`
}

// ReviewConfig configures low-confidence surfacing and verification.
type ReviewConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	Reviewer            string  `yaml:"reviewer" mapstructure:"reviewer"`
}

// RunsConfig configures run artifact storage.
type RunsConfig struct {
	Root string `yaml:"root" mapstructure:"root"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CARDSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("anthropic.vision_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("ocr.languages", []string{"eng"})
	v.SetDefault("ocr.max_text_len", 10000)
	v.SetDefault("raster.pdftoppm_path", "pdftoppm")
	v.SetDefault("raster.dpi", 300)
	v.SetDefault("process.remote_enabled", true)
	v.SetDefault("process.front_only", true)
	v.SetDefault("process.debug_dir", "logs/remote_debug")
	v.SetDefault("review.confidence_threshold", 0.9)
	v.SetDefault("review.reviewer", "human")
	v.SetDefault("runs.root", "Outputs")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
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
