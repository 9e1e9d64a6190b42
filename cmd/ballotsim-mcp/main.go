// Command ballotsim-mcp serves the run history and reports over the
// Model Context Protocol on stdio.
package main

import (
	"flag"
	"log"

	"github.com/civiclab/ballotsim/pkg/mcp"
	"github.com/civiclab/ballotsim/pkg/store"
)

func main() {
	var (
		dbPath string
		outDir string
	)
	flag.StringVar(&dbPath, "db", "ballotsim.db", "path to the run-history database")
	flag.StringVar(&outDir, "out-dir", "runs", "directory containing per-run record folders")
	flag.Parse()

	st, err := store.NewStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to open run history: %v", err)
	}
	defer st.Close()

	srv := mcp.NewServer(st, outDir)
	if err := srv.Serve(); err != nil {
		log.Fatalf("MCP server failed: %v", err)
	}
}
