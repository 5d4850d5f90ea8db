package main

import (
	"os"

	"github.com/zhubert/para/cmd"
	"github.com/zhubert/para/ui"
)

// Version information set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	if err := cmd.Execute(); err != nil {
		ui.Fail("%v", err)
		os.Exit(1)
	}
}
