// Command shopctl operates the shop ledger from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/retroryan/shopledger/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if !cli.Reported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
