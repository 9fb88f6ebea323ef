package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/martinemde/agentwire/agentcore"
)

// serveConfig is the file/env configuration for the serve command. Flags
// override file values; env vars use the AGENTWIRE_ prefix.
type serveConfig struct {
	Transport    string              `mapstructure:"transport"`
	Listen       string              `mapstructure:"listen"`
	TranscriptDB string              `mapstructure:"transcript_db"`
	MaxSteps     int                 `mapstructure:"max_steps"`
	Agent        agentcore.AgentSpec `mapstructure:"agent"`
}

func loadConfig(path string) (*serveConfig, error) {
	v := viper.New()
	v.SetDefault("transport", "stdio")
	v.SetDefault("listen", "127.0.0.1:7433")
	v.SetDefault("max_steps", 0)
	v.SetDefault("agent.name", "agent")

	v.SetEnvPrefix("AGENTWIRE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("agentwire")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".agentwire"))
		}
		if err := v.ReadInConfig(); err != nil {
			// Serving without a config file is fine; the client supplies
			// external tools during initialize.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg serveConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
