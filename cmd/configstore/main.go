// Command configstore inspects and follows a config store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/configstore/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		code := cli.GetExitCode(err)
		// Commands that already reported the error in the chosen format
		// return an ExitError; anything else (flag errors) is printed here.
		var reported *cli.ExitError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(code)
	}
}
