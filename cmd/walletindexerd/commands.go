package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/andreabadesso/hathor-wallet-service/build"
	"github.com/andreabadesso/hathor-wallet-service/pkg/cli"
)

// envReplacer turns a flag like "postgres-dsn" into the env var
// WALLETIDX_POSTGRES_DSN.
var envReplacer = strings.NewReplacer("-", "_")

// envPrefix matches every WALLETIDX_* environment variable to its flag,
// per SPEC_FULL.md §6.
const envPrefix = "WALLETIDX"

type commands struct {
	cfg Config
	v   *viper.Viper
}

func (cmds *commands) rootCommand(*cobra.Command, []string) {
	if err := cmds.v.Unmarshal(&cmds.cfg); err != nil {
		cli.DieWithError("failed to parse configuration", err)
	}
	if err := runDaemon(cmds.cfg); err != nil {
		cli.DieWithError("daemon failed", err)
	}
}

// configCommand prints the effective configuration (flags, env vars and
// config file merged by viper) as TOML, the way cmd/rivinecg's config
// package marshals its Config with toml.Marshal before writing it out.
// Useful for confirming what walletindexerd would actually run with.
func (cmds *commands) configCommand(*cobra.Command, []string) {
	if err := cmds.v.Unmarshal(&cmds.cfg); err != nil {
		cli.DieWithError("failed to parse configuration", err)
	}
	out, err := toml.Marshal(cmds.cfg)
	if err != nil {
		cli.DieWithError("failed to marshal configuration", err)
	}
	fmt.Println(string(out))
}

func (cmds *commands) versionCommand(*cobra.Command, []string) {
	fmt.Printf("Wallet Indexer Daemon v%s\r\n", build.Version)
	if build.GitRevision != "" {
		fmt.Printf("Git Revision %s\r\n", build.GitRevision)
	}
	fmt.Println()
	fmt.Printf("Go Version   v%s\r\n", strings.TrimPrefix(runtime.Version(), "go"))
	fmt.Printf("GOOS         %s\r\n", runtime.GOOS)
	fmt.Printf("GOARCH       %s\r\n", runtime.GOARCH)
}

// bindFlags registers every Config field as a persistent flag, then binds
// viper to flags/env/config-file in that order of precedence, mirroring
// the teacher's cobra-root-command + viper wiring in cmd/rivined.
func bindFlags(flags *pflag.FlagSet, v *viper.Viper, def Config) {
	flags.String("postgres-dsn", def.PostgresDSN, "PostgreSQL connection string")
	flags.String("listen-addr", def.ListenAddr, "HTTP API listen address")
	flags.Uint16("default-gap-limit", def.DefaultGapLimit, "default address gap limit (not read by the HTTP API, which uses 20)")
	flags.Int("default-history-count", def.DefaultHistoryCount, "default transaction history page size (not read by the HTTP API, which uses 50)")
	flags.Uint32("block-reward-lock", def.BlockRewardLock, "block height offset applied to block outputs (BLOCK_REWARD_LOCK)")
	flags.String("log-level", def.LogLevel, "logrus level: debug, info, warn, error")

	v.BindPFlags(flags)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()
	v.SetConfigName("walletindexerd")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/walletindexerd")
	// A missing config file is not fatal -- flags/env/defaults still apply.
	_ = v.ReadInConfig()
}
