// Command apiquery parses, compiles and runs JSON:API query strings
// against a resource schema.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/apiquery/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands report their own errors; anything else is a usage error.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.GetExitCode(err))
}
