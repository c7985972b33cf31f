package version

import (
	"github.com/spf13/cobra"

	"github.com/wandb/chunkup/internal/cliutil"
	"github.com/wandb/chunkup/internal/version"
)

// NewVersionCmd creates a new command that displays version information
func NewVersionCmd() *cobra.Command {
	var opts cliutil.OutputOptions

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Long:  `Display the version, git commit, and environment of the CLI.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliutil.HandleOutput(cmd.OutOrStdout(), opts, map[string]any{
				"version":     version.Version,
				"gitCommit":   version.Commit,
				"environment": version.Environment,
			})
		},
	}

	cmd.Flags().StringVar(&opts.Template, "template", "", "Template for output format. Accepts Go template format (e.g. --template='{{.version}}')")
	cmd.Flags().StringVar(&opts.Format, "format", "json", "Output format. Accepts 'json' or 'yaml'")

	return cmd
}
