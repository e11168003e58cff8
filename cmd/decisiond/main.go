// Command decisiond is the Decision core's demo entrypoint: it wires the
// orchestrator to in-process channels standing in for the external KV-store
// and FIB programmer, mirroring the teacher's cmd/root.go + core.Start()
// split. Its one subcommand, demo, feeds the mock topology in and prints the
// RouteDb returned by GetRouteDb; the other introspection RPCs are not
// exposed on the CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	nodeFlag    string
	areaFlag    string
	logFileFlag string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "decisiond",
	Short: "Route-decision core demo daemon",
	Long: `decisiond runs the link-state route-decision core against an
in-process synthetic topology and prints the resulting RIB, for
exercising the Decision orchestrator outside of a full KV-store/FIB
deployment.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&nodeFlag, "node", "n", "bob", "local node name")
	rootCmd.PersistentFlags().StringVarP(&areaFlag, "area", "a", "0", "area id")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "also append logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "debug-level logging")
}

func main() {
	Execute()
}
