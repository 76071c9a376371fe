package main

import "github.com/joescharf/bugboard/cmd"

// Set by ldflags in magefiles/magefile.go.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
