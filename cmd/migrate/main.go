// migrate applies the membership mirror schema. The SQL ships embedded in
// the binary, so all it needs is DATABASE_URL.
package main

import (
	"flag"
	"fmt"
	"os"

	"membersync/internal/config"
	"membersync/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", migrate.DirectionUp, "migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("mirror schema %s complete\n", *direction)
}
