package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/agent-protocol/a2a-relay/pkg/cli"
)

func main() {
	// Optional .env file; flags and real env vars take precedence.
	_ = godotenv.Load()

	app := cli.NewApp()
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
