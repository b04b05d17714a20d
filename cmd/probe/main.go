// Command probe queries the dashboard's gRPC health service, once or in a
// reconnecting watch loop.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
