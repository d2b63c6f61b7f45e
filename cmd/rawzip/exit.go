//go:build !windows

package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

// exit exits with status 1 if err is non-nil, unless the error is go-flags printing help.
func exit(err error) {
	if err == nil || flags.WroteHelp(err) {
		return
	}

	os.Exit(1)
}
