// Package main provides graphctl, the admin CLI for the memory graph.
//
// Usage:
//
//	graphctl [flags] <command> [args]
//
// Commands:
//
//	migrate   - Create the schema if missing
//	seed      - Insert the demo graph
//	reset     - Delete every entity and edge
//	stats     - Print row counts
//	snapshot  - Create, list, restore, export and prune snapshots
//	project   - Write the graph into a read model (neo4j)
//
// Configuration comes from the environment and an optional .env file, the
// same variables the server reads.
package main

import (
	"fmt"
	"os"

	"memgraph/backend/cmd/graphctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
