package main

import (
	"context"
	"fmt"
	"os"

	"github.com/danmuck/placectl/internal/commands"
	"github.com/danmuck/placectl/internal/logging"
)

func main() {
	logging.ConfigureRuntime()
	if err := commands.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "placectl: %v\n", err)
		os.Exit(1)
	}
}
