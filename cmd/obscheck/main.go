package main

import (
	"os"

	"github.com/smarthubultra/identity-service/internal/tools/obscheck"
)

func main() {
	if err := obscheck.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
