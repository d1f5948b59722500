// Package config handles process configuration: where banner files live,
// listen addresses, logging and the worker pool size. Used by every
// gachasim subcommand.
package config

import (
	"errors"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	KeyConfigDir      = "config_dir"
	KeyListenAddress  = "listen_address"
	KeyGRPCAddress    = "grpc_address"
	KeyLogLevel       = "log_level"
	KeyLogFormat      = "log_format"
	KeyWorkers        = "workers"
	KeyRequestTimeout = "request_timeout"
)

// Viper-based config loader. Values come from flags bound by the caller,
// GACHASIM_* environment variables and an optional ~/.gachasim.yaml, in that
// order of precedence.
func Init(log zerolog.Logger) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	viper.SetConfigType("yaml")
	viper.SetConfigName(".gachasim")
	viper.AddConfigPath(".")
	viper.AddConfigPath(home)
	viper.SetEnvPrefix("GACHASIM")
	viper.AutomaticEnv()
	viper.SetDefault(KeyConfigDir, "configs")
	viper.SetDefault(KeyListenAddress, ":8080")
	viper.SetDefault(KeyGRPCAddress, ":9090")
	viper.SetDefault(KeyLogLevel, "info")
	viper.SetDefault(KeyLogFormat, "console")
	viper.SetDefault(KeyWorkers, runtime.GOMAXPROCS(0))
	viper.SetDefault(KeyRequestTimeout, "2m")

	// a missing config file is fine
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn().Err(err).Msg("can't read config file")
		}
	} else {
		log.Debug().Str("file", viper.ConfigFileUsed()).Msg("config file loaded")
	}
}

func ConfigDir() string {
	return viper.GetString(KeyConfigDir)
}

func ListenAddress() string {
	return viper.GetString(KeyListenAddress)
}

func GRPCAddress() string {
	return viper.GetString(KeyGRPCAddress)
}

func LogLevel() string {
	return viper.GetString(KeyLogLevel)
}

func LogFormat() string {
	return viper.GetString(KeyLogFormat)
}

// Workers is the Monte Carlo worker pool size, at least 1.
func Workers() int {
	return max(viper.GetInt(KeyWorkers), 1)
}

// RequestTimeout bounds one HTTP or gRPC simulation request; 0 disables it.
func RequestTimeout() time.Duration {
	return viper.GetDuration(KeyRequestTimeout)
}
