package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Bootstrap holds the settings needed before the config file is read.
type Bootstrap struct {
	ConfigFile string `envconfig:"CONFIG_FILE"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"console"`
	InstanceID string `envconfig:"INSTANCE_ID"`
}

// LoadBootstrap reads PWPOLICY_CONFIG_FILE, PWPOLICY_LOG_LEVEL,
// PWPOLICY_LOG_FORMAT and PWPOLICY_INSTANCE_ID.
func LoadBootstrap() (*Bootstrap, error) {
	var b Bootstrap
	if err := envconfig.Process(EnvPrefix, &b); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &b, nil
}
