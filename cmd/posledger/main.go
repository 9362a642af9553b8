// Command posledger runs the point-of-sale ledger.
package main

import (
	"fmt"
	"os"

	"github.com/counterline/posledger/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
