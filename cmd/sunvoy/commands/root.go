package commands

import (
	"context"
	"fmt"
	"os"
	"sunvoy-scraper/lib/serviceutil"
	"sunvoy-scraper/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool
	dumpHttp   *string
)

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The config file, config.local.json5 next to it overrides it.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages.")
	dumpHttp = rootCmd.PersistentFlags().String("dump-http", "", "A directory to dump every http exchange to, overrides dump_http_dir.")
}

var rootCmd = &cobra.Command{
	Use:   "sunvoy",
	Short: "sunvoy collects the user directory of the sunvoy challenge site into a json file.",
	Long: "sunvoy logs into the sunvoy challenge site (reusing the saved session while it is still valid), " +
		"fetches every user and the current user, and writes them to a json file. " +
		"Running it without a subcommand is the same as running `sunvoy sync`.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
	Run: func(cmd *cobra.Command, args []string) {
		err := runSync(cmd.Context())
		if err != nil {
			serviceutil.Fatal("sync failed", err)
		}
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
