// Command dashctl is the operator client for the logistics dashboard.
package main

import (
	"fmt"
	"os"

	"github.com/spec-kit/logistics-dashboard/internal/config"
)

func main() {
	if err := newRootCmd(config.LoadClient()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
