package root

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/wandb/chunkup/cmd/chunkup/root/upload"
	"github.com/wandb/chunkup/cmd/chunkup/root/version"
)

// NewRootCmd creates the chunkup command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunkup <command> [flags]",
		Short: "Upload large files to blob storage in chunks",
		Long: heredoc.Doc(`
			chunkup uploads files to S3, Google Cloud Storage or Azure in
			fixed-size chunks, retrying each chunk independently.
		`),
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Config file (default is $HOME/.chunkup.yaml)")

	cmd.AddCommand(upload.NewUploadCmd())
	cmd.AddCommand(version.NewVersionCmd())

	return cmd
}
