package main

import (
	"os"

	"github.com/kode4food/buildprops/cmd/bpctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
