package app

import (
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
)

const appName = "authsrv"

// printBanner writes the ASCII-art name, but only to a terminal.
func printBanner(w io.Writer) {
	if !isTerminal(w) {
		return
	}
	fig := figure.NewFigure(appName, "cybermedium", true)
	_, _ = fmt.Fprintln(w, fig.String())
}
