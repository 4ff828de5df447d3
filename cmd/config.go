package main

import "time"

type Config struct {
	Host                      string        `env:"HOST,default=localhost"`
	Port                      int           `env:"PORT,default=8080"`
	LogLevel                  string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath            string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret                 string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration         time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	ConnectionBufferSize      int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	FanoutQueueSize           int           `env:"FANOUT_QUEUE_SIZE,default=1024"`
	HistoryPageLimit          int           `env:"HISTORY_PAGE_LIMIT,default=50"`
	MetricInterval            time.Duration `env:"METRIC_INTERVAL,default=30s"`
	CensoredWords             string        `env:"CENSORED_WORDS"`
	ModerationCharReplacement string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
	ShutdownTimeout           time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}
