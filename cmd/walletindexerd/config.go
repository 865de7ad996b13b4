package main

import "github.com/andreabadesso/hathor-wallet-service/modules"

// Config holds every configurable value of walletindexerd (SPEC_FULL.md
// §6): the storage DSN, the API listen address, the two gap-limit/
// history-page defaults, the BLOCK_REWARD_LOCK constant, and the log
// level. Bound by viper in commands.go, mirroring the teacher's
// ExtendedDaemonConfig embedding daemon.Config. DefaultGapLimit and
// DefaultHistoryCount are parsed and printed by the config subcommand but
// are not passed to the HTTP API, which uses its own fixed defaults (a gap
// limit of 20 and a history page size of 50).
type Config struct {
	PostgresDSN string `mapstructure:"postgres-dsn"`
	ListenAddr  string `mapstructure:"listen-addr"`

	DefaultGapLimit     uint16 `mapstructure:"default-gap-limit"`
	DefaultHistoryCount int    `mapstructure:"default-history-count"`
	BlockRewardLock     uint32 `mapstructure:"block-reward-lock"`

	LogLevel string `mapstructure:"log-level"`
}

// DefaultConfig mirrors the teacher's daemon.DefaultConfig: a Config with
// every field set to the value walletindexerd runs with when nothing is
// overridden by flag, env var or config file.
func DefaultConfig() Config {
	return Config{
		PostgresDSN:         "postgres://localhost/walletindexer?sslmode=disable",
		ListenAddr:          ":9980",
		DefaultGapLimit:     20,
		DefaultHistoryCount: 50,
		BlockRewardLock:     1,
		LogLevel:            "info",
	}
}

func (c Config) blockRewardLock() modules.Height {
	return modules.Height(c.BlockRewardLock)
}
