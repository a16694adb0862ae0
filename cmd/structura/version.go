package main

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newthinker/structura/internal/strategy"
)

// Set at link time: -ldflags "-X main.version=v1.2.0 -X main.gitCommit=abc123".
var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

// buildInfo is what `structura version` prints and what the status API
// reports on /api/health.
type buildInfo struct {
	Version    string
	Commit     string
	BuiltAt    string
	GoVersion  string
	Strategies []string
}

func currentBuild() buildInfo {
	var names []string
	registerStrategies(func(s strategy.Strategy) { names = append(names, s.Name()) })
	return buildInfo{
		Version:    version,
		Commit:     gitCommit,
		BuiltAt:    buildTime,
		GoVersion:  runtime.Version(),
		Strategies: names,
	}
}

func (b buildInfo) write(w io.Writer) {
	fmt.Fprintf(w, "structura %s (%s)\n", b.Version, b.Commit)
	fmt.Fprintf(w, "  built:      %s, %s\n", b.BuiltAt, b.GoVersion)
	fmt.Fprintf(w, "  strategies: %s\n", strings.Join(b.Strategies, ", "))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information and the compiled-in strategies",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		currentBuild().write(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.Version = version
	rootCmd.AddCommand(versionCmd)
}
