// Command callwatch-demo is a small consumer binary exercising the callwatch
// library end to end: it loads a declarative YAML policy (internal/config),
// wires a Monitor, and exposes enable/disable/simulate subcommands, in the
// teacher's cmd/<name> + cobra root-command layout (cmd/configvalidator).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "callwatch-demo",
	Short:   "Drives a callwatch Monitor from a declarative YAML policy file",
	Version: version,
}

var policyPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&policyPath, "policy", "p", "callwatch.yaml", "path to the callwatch YAML policy file")
	rootCmd.AddCommand(enableCmd, disableCmd, simulateCmd)
}
