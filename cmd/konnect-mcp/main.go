// konnect-mcp serves the Kong Konnect API as Model Context Protocol tools.
package main

import (
	"fmt"
	"os"

	"github.com/CAcquaviva/mcp-konnect/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
