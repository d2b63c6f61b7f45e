//go:build windows

package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"
)

// exit keeps the console open when rawzip is started by dropping archives onto the executable.
func exit(err error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		if err != nil && !flags.WroteHelp(err) {
			_, _ = fmt.Fprintf(os.Stderr, "rawzip failed: %v\n", err)
		}

		_, _ = fmt.Fprintf(os.Stderr, "Press any key to close console\n")
		_, _, _ = bufio.NewReader(os.Stdin).ReadRune()
	}

	if err != nil && !flags.WroteHelp(err) {
		os.Exit(1)
	}
}
