package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// main builds the root command tree using cobra, binds its flags with
// viper, and executes it -- mirroring cmd/rivined/main.go's
// daemon.SetupDefaultDaemon entrypoint, specialized to one daemon instead
// of a pluggable module set.
func main() {
	def := DefaultConfig()
	v := viper.New()
	cmds := &commands{cfg: def, v: v}

	root := &cobra.Command{
		Use:   "walletindexerd",
		Short: "Wallet Indexer Daemon",
		Long:  "walletindexerd projects transaction events into per-address and per-wallet balances and serves them over HTTP.",
		Run:   cmds.rootCommand,
	}
	bindFlags(root.PersistentFlags(), v, def)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run:   cmds.versionCommand,
	})
	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Run:   cmds.configCommand,
	})

	if err := root.Execute(); err != nil {
		root.PrintErrln(err)
	}
}
