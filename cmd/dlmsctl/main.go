// cmd/dlmsctl/main.go
package main

import (
	"fmt"
	"os"

	"github.com/javajoker/dlms-backend/internal/cli"
	"github.com/javajoker/dlms-backend/internal/config"
	"github.com/javajoker/dlms-backend/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	// Logs go to stderr so --format json output stays parseable.
	logging.Configure(cfg.Logging, os.Stderr)

	if err := cli.NewRootCommand(cli.NewRuntime(cfg)).Execute(); err != nil {
		os.Exit(1)
	}
}
