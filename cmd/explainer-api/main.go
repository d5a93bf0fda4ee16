// Command explainer-api serves POST /explain, GET /health and GET /metrics.
package main

import (
	"context"
	"os"

	"github.com/souraviitkgp/bluesky-explainer-agent/internal/cli"
)

func main() {
	os.Exit(cli.ExecuteAPI(context.Background(), os.Args[1:]))
}
