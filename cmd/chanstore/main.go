package main

import (
	"os"

	"github.com/bigkaa/chanstore/internal/config"
)

// Заполняются через -ldflags при сборке.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	config.Version = version
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
