package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/coldrunhq/coldrun/pkg/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an experiment manifest",
	Long: `Load an experiment manifest and check it against the embedded JSON schema
and semantic rules, without running anything.

Example:
  coldrun validate --job experiment.yaml`,
	RunE: runValidate,
}

var validateJobPath string

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateJobPath, "job", "j", "", "Path to experiment manifest (required)")
	_ = validateCmd.MarkFlagRequired("job")
}

func runValidate(cmd *cobra.Command, args []string) error {
	m, err := manifest.Load(validateJobPath)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid experiment manifest", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d vm(s), %d benchmark entr%s, %d pexec(s)\n",
		validateJobPath, len(m.VMs), len(m.Benchmarks), plural(len(m.Benchmarks)), m.Execution.Pexecs)
	return nil
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
