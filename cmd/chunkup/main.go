package main

import (
	"context"
	"os"

	"github.com/wandb/chunkup/cmd/chunkup/root"
)

func main() {
	cmd := root.NewRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
