// Command eval-harness evaluates the explainer against a fixture file and
// writes a JSON report.
package main

import (
	"context"
	"os"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/cli"
)

func main() {
	os.Exit(cli.ExecuteEval(context.Background(), os.Args[1:]))
}
