package main

import (
	"os"

	"github.com/distml/traincoord/cmd/traincoord/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
