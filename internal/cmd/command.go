package cmd

import (
	"context"
	"fmt"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/rawzip/internal/config"
)

type Rawzip struct {
	Profile string  `short:"p" long:"profile" description:"override the AWS profile used for S3 archives" default-mask:"-"`
	Extract Extract `command:"extract" alias:"x" description:"extract stored ZIP archives"`
	List    List    `command:"list" alias:"ls" description:"list the central directory of ZIP archives"`
}

// NewParser returns the parser for the rawzip command line.
//
// The .rawzip configuration file is loaded before any command is executed.
func NewParser() (*flags.Parser, error) {
	opts := &Rawzip{}

	p := flags.NewNamedParser("rawzip", flags.Default)
	if _, err := p.AddGroup("Global Options", "", opts); err != nil {
		return nil, err
	}

	p.CommandHandler = func(command flags.Commander, args []string) error {
		if command == nil {
			return nil
		}

		if _, err := config.LoadProfile(context.Background(), opts.Profile); err != nil {
			return fmt.Errorf("load %s error: %w", config.Name, err)
		}

		return command.Execute(args)
	}

	return p, nil
}
