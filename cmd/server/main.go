package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "callrouter",
	Short: "Call routing and queueing decision engine",
	Long: `callrouter decides where each call goes: straight to the best agent,
into a priority queue, or to voicemail. It serves a REST API and pushes
decisions and snapshots to dashboards over WebSocket.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(newServeCmd(), newRulesCmd(), newSimulateCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"callrouter","version":%q}`, version)
}
