package main

import (
	"bggstats/cmd/bggstats/commands"
	"bggstats/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
