package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Router    RouterConfig
	Log       LogConfig
	Events    map[string]EventConfig `mapstructure:"events"`
}

type ServerConfig struct {
	Address string
	// AllowedOrigin is the single origin allowed for CORS and the WebSocket
	// handshake. "*" allows any origin.
	AllowedOrigin   string                `mapstructure:"allowedOrigin"`
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
	// TrustProxyHeaders takes the client IP from X-Forwarded-For/X-Real-IP.
	// Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `mapstructure:"trustProxyHeaders"`
}

type ConnectionLimitConfig struct {
	MaxPerIP int    `mapstructure:"maxPerIP"`
	Mode     string `mapstructure:"mode"` // "reject" or "cycle"
}

type TransportConfig struct {
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	SendBuffer   int           `mapstructure:"sendBuffer"`
}

type RouterConfig struct {
	QueueSize int `mapstructure:"queueSize"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EventConfig lists the modifiers run before an event's action.
type EventConfig struct {
	Modifiers []ModifierConfig `mapstructure:"modifiers"`
}

type ModifierConfig struct {
	Name   string   `mapstructure:"name"`
	Params []string `mapstructure:"params"`
}
