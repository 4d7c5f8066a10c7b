package config

import (
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const EnvPrefix = "NESSA"

// Load reads the optional config file and the NESSA_* environment.
func Load(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".nessa")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("tio.url", "https://cloud.tenable.com")
	viper.SetDefault("output", "output")
	viper.SetDefault("format", "json")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return err
		}
	} else {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}

	return nil
}
