package main

import (
	"os"

	"github.com/fraktlabs/fencewatch/cmd"
	"github.com/fraktlabs/fencewatch/internal/buildinfo"
	"github.com/fraktlabs/fencewatch/internal/conf"
	"github.com/fraktlabs/fencewatch/internal/logger"
)

// Set through -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   = "dev"
	buildDate = ""
)

func main() {
	settings := &conf.Settings{}
	rootCmd := cmd.RootCommand(settings, buildinfo.NewContext(version, buildDate))

	err := rootCmd.Execute()
	_ = logger.Global().Close()
	if err != nil {
		os.Exit(1)
	}
}
