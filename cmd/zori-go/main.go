package main

import (
	"context"
	"fmt"
	"os"

	"github.com/AtRiskMedia/zori-go/internal/presentation/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
