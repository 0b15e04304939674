// Command migrate applies, reverts and inspects schema migrations.
//
// Usage:
//
//	migrate up [target] [--dry-run]
//	migrate down <target>
//	migrate status
//	migrate verify
//	migrate resolve <id> applied|unapplied
//	migrate version
//
// The backend is a SQL database (--database-url, --dialect) or a bbolt file
// (--bolt-path). Declarative migrations are read from --migrations-dir.
// Every flag can also be set through a MIGRATE_* environment variable or a
// config file named by MIGRATE_CONFIG_PATH.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/getpup/schemamigrate"
)

func main() {
	// Set up graceful shutdown. Cancellation takes effect between steps.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "Received shutdown signal, stopping after the current migration...")
		cancel()
	}()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		reportFailure(os.Stderr, err)
		os.Exit(1)
	}
}

// reportFailure prints err and, when known, the last confirmed-applied migration.
func reportFailure(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)

	var runErr *schemamigrate.RunError
	if errors.As(err, &runErr) {
		fmt.Fprintf(w, "last applied: %s\n", runErr.LastApplied)
	}
}
