package main

import (
	"fmt"
	"os"

	"authsrv/cmd/internal/app"
)

func main() {
	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "authsrv:", err)
		os.Exit(1)
	}
}
