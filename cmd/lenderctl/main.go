package main

import (
	"os"

	"github.com/keelerlabs/lenderctl/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
