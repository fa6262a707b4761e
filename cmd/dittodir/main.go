package main

import (
	"fmt"
	"os"

	"github.com/marmos91/dittodir/cmd/dittodir/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
