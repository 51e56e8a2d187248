// Command diary runs the diary backend.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/roach88/diary/internal/cli"
)

func main() {
	// A missing .env is fine; DIARY_* may come from the real environment.
	_ = godotenv.Load()

	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
