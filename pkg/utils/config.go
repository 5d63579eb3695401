// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	// ConfigurationFileDirectory is searched before the standard paths.
	ConfigurationFileDirectory string
)

// EnvPrefix prefixes environment overrides, e.g. ZAPPROPS_DB_DRIVER.
const EnvPrefix = "ZAPPROPS"

// LoadConfiguration merges configFileName into viper from the first config
// path that has it. A missing optional file is not an error.
func LoadConfiguration(configFileName string, required bool) bool {
	viper.SetConfigName(configFileName)
	if ConfigurationFileDirectory != "" {
		viper.AddConfigPath(ResolvePath(ConfigurationFileDirectory))
	}
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.zapprops")
	viper.AddConfigPath("/etc/zapprops/")
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if required {
				log.Fatal().Msgf("Config file not found: %s", configFileName)
			}
			log.Debug().Msgf("Config file not found: %s", configFileName)
			return false
		}

		if required {
			log.Fatal().Err(err).Msgf("Failed to load required config file: %s", configFileName)
		}
		log.Warn().Err(err).Msgf("Failed to load config file: %s", configFileName)
		return false
	}
	log.Info().Msgf("Loaded config file: %s", viper.ConfigFileUsed())

	return true
}
