package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/urfave/cli"
	"github.com/veritas-l2/hextrie/cli/bundle"
	"github.com/veritas-l2/hextrie/cli/proof"
	"github.com/veritas-l2/hextrie/cli/server"
	"github.com/veritas-l2/hextrie/pkg/config"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "hextrie\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a hextrie instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "hextrie"
	ctl.Version = config.Version
	ctl.Usage = "Verifiable trie and fraud proof toolkit"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, bundle.NewCommands()...)
	ctl.Commands = append(ctl.Commands, proof.NewCommands()...)
	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	return ctl
}
