package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" default:"1" help:"Run the bingo coordination server"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bingo-engine"),
		kong.Description("Real-time game coordination server for the bingo platform"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
