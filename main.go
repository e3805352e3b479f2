package main

import (
	"os"

	"github.com/jfoster/retain/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
