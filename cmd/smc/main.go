package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"smc-signals/internal/cli"
	"smc-signals/internal/logging"
)

func main() {
	// .env is optional; SMC_* variables may also come from the environment.
	_ = godotenv.Load()

	// Replaced by the configured logger once config.toml is loaded.
	bootstrap := logging.NewLoggerWithConfig(logging.LogConfig{Level: "info", Console: true})

	root := cli.NewRootCmd(nil, bootstrap)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
