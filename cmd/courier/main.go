// courier is a command line client for the courier analytics pipeline.
//
// Usage:
//
//	courier config init --api-key K --host H   Write ~/.courier/config.yaml
//	courier capture <event> [--prop k=v]       Capture and deliver an event
//	courier flush                              Deliver events left in the queue
//	courier flags [--distinct-id ID]           Resolve feature flags
//	courier inspect                            Show the persisted queue
//	courier serve [--addr host:port]           Run a local ingestion server
package main

import (
	"fmt"
	"os"

	"github.com/Tap30/courier-go/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
