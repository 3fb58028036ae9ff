package config

import "time"

// ServerConfig configures the HTTP host.
type ServerConfig struct {
	Port        int
	CORSOrigins string
	BodyLimit   int
	IdleTimeout time.Duration
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:        getEnvInt("PORT", 8080),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		BodyLimit:   getEnvInt("BODY_LIMIT_BYTES", 1024*1024),
		IdleTimeout: getEnvDuration("IDLE_TIMEOUT", 120*time.Second),
	}
}
