package main

import (
	"flag"
	"fmt"
	"os"

	"codearena/internal/cli"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "arena service base URL")
	token := flag.String("token", "", "bearer token (or use the login command)")
	flag.Parse()

	client := cli.NewClient(*baseURL)
	if *token != "" {
		client.SetToken(*token)
	}

	console := cli.NewConsole(client)
	if err := console.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "console: %v\n", err)
		os.Exit(1)
	}
}
