// Command qbind resolves front-end query statements against a mapping
// catalog and compiles them to SQLite SQL.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/qbind/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
