// Package cmd provides CLI commands for the Gorp server.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - version: build information
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gorplabs/gorp/internal/log"
)

// Execute is the main entry point for the gorp binary.
func Execute() error {
	// Initialize logger once at entry point; serve re-configures it from
	// the loaded config.
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Gorp, The Magnificent - chat backend")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gorp serve [addr]  Start HTTP API server (default: :8080)")
	fmt.Println("  gorp --version     Show version information")
	fmt.Println("  gorp --help        Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Gemini API key (provider \"gemini\")")
	fmt.Println("  OPENAI_API_KEY     OpenAI API key (provider \"openai\")")
	fmt.Println("  GORP_PROVIDER      AI provider: gemini (default), ollama, openai")
	fmt.Println("  GORP_MODEL_NAME    Model override (e.g. llama3.2)")
	fmt.Println("  GORP_ADDR          Listen address (e.g. :8080)")
	fmt.Println("  GORP_LOG_LEVEL     debug, info, warn, error")
	fmt.Println("  GORP_LOG_FORMAT    text or json")
	fmt.Println()
	fmt.Println("Config file: ~/.gorp/config.yaml")
}
