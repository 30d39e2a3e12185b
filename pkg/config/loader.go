package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from a file and environment variables.
// searchPaths defaults to the working directory and ./config.
func Load(logger *slog.Logger, fileName string, searchPaths ...string) (*Config, error) {
	v := viper.New()

	// 1. Set default values
	v.SetDefault("server.address", ":3001")
	v.SetDefault("server.allowedOrigin", "*")
	v.SetDefault("server.connectionLimit.maxPerIP", 0)
	v.SetDefault("server.connectionLimit.mode", "reject")
	v.SetDefault("server.trustProxyHeaders", false)
	v.SetDefault("transport.readTimeout", "0s")
	v.SetDefault("transport.writeTimeout", "10s")
	v.SetDefault("transport.sendBuffer", 256)
	v.SetDefault("router.queueSize", 1024)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// 2. Set config file details
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	if len(searchPaths) == 0 {
		searchPaths = []string{".", "./config"}
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	// 3. Set up environment variable handling
	v.SetEnvPrefix("POKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Read the configuration file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// Config file was found but another error was produced
			return nil, err
		}
		logger.Warn("Config file not found. ignoring error and relying on defaults/env vars")
	}

	// 5. Unmarshal the configuration into our struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyPlatformEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformEnv honours the bare PORT and FRONTEND_ORIGIN variables set by
// hosting platforms.
func applyPlatformEnv(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		host, _, err := net.SplitHostPort(cfg.Server.Address)
		if err != nil {
			host = ""
		}
		cfg.Server.Address = net.JoinHostPort(host, port)
	}
	if origin := strings.TrimSpace(os.Getenv("FRONTEND_ORIGIN")); origin != "" {
		cfg.Server.AllowedOrigin = origin
	}
}

func (c *Config) Validate() error {
	switch c.Server.ConnectionLimit.Mode {
	case "reject", "cycle":
	default:
		return fmt.Errorf("invalid connection limit mode '%s'", c.Server.ConnectionLimit.Mode)
	}
	if c.Transport.SendBuffer <= 0 {
		return fmt.Errorf("transport.sendBuffer must be positive, got %d", c.Transport.SendBuffer)
	}
	if c.Router.QueueSize <= 0 {
		return fmt.Errorf("router.queueSize must be positive, got %d", c.Router.QueueSize)
	}
	if c.Server.AllowedOrigin == "" {
		return errors.New("server.allowedOrigin must not be empty")
	}
	return nil
}
