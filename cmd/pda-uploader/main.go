// Command pda-uploader publishes deduplicated PDA collector output to a
// blue/green pair of D1 databases.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/roach88/pda-uploader/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
