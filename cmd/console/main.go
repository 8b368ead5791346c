// Command console is an interactive terminal client for a running loupe
// server. It submits questions, streams the spinner while the engine
// iterates, and renders the answer with its sources and retrieval trace.
//
// The server address comes from -server or LOUPE_SERVER; the API key, if
// the server requires one, from LOUPE_API_KEY. A .env file in the working
// directory is loaded first.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/loupelabs/loupe/pkg/console"
)

func main() {
	_ = godotenv.Load()

	defaultServer := os.Getenv("LOUPE_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}

	server := flag.String("server", defaultServer, "loupe server base URL")
	collection := flag.String("collection", "", "restrict queries to one collection")
	flag.Parse()

	client := console.NewClient(*server, os.Getenv("LOUPE_API_KEY"))
	m := console.New(client, *collection)

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "console:", err)
		os.Exit(1)
	}
}
