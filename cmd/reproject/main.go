// Command reproject renders map images from a source in one coordinate
// system into another.
package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pspoerri/mapreproject/internal/reproject"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "reproject",
	Short: "Reproject and resample map images between coordinate systems",
	Long: `reproject renders a bounding box in a target coordinate system from an
image source in another one. Sources are georeferenced image files (with a
world file sidecar) or map servers reachable through a GetMap-style URL.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			reproject.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose progress and debug output")
}

func main() {
	log.SetFlags(0)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
