// Command kasir is an offline-first cashier terminal.
package main

import (
	"fmt"
	"os"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil && !cli.IsReported(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
