// Command rlcam-sim drives a pair of RLC AM entities over an in-process
// lossy channel, for exercising the protocol end to end without a real
// MAC/PHY stack underneath.
package main

import (
	"os"

	"github.com/marmos91/rlcam/cmd/rlcam-sim/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("error: %v", err)
		os.Exit(1)
	}
}
