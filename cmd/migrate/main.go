// migrate applies the embedded registry schema; go run ./cmd/migrate -direction up.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/eaglebank/registry/internal/db/migrate"
	"github.com/eaglebank/registry/shared/config"
)

func main() {
	direction := flag.String("direction", migrate.Up, "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		fmt.Fprintln(os.Stderr, "STORE_DRIVER is not postgres; nothing to migrate")
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
