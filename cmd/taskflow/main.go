package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	app "github.com/valter-silva-au/taskflow/internal"
	"github.com/valter-silva-au/taskflow/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// A missing .env is fine; TASKFLOW_* may come from the real environment.
	_ = godotenv.Load()

	cli.SetVersionInfo(version, commit, date)
	basePath := app.ResolveBasePath()

	a, err := app.NewApp(basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing taskflow: %v\n", err)
		os.Exit(1)
	}

	err = cli.Execute()
	_ = a.Close()
	if err != nil {
		os.Exit(1)
	}
}
