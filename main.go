package main

import (
	"os"

	"github.com/springfield-ops/townctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
