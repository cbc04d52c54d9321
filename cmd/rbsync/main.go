// Command rbsync synchronizes release bundle promotions between two
// lifecycle tracking systems.
package main

import (
	"fmt"
	"os"

	"github.com/nagag08/rbpromotionsync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
