// Command flint runs tick-stepped block-world tests.
package main

import (
	"os"

	"github.com/roach88/flint/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
