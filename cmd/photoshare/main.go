package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"photoshare/internal/app"
)

func main() {
	// Missing .env is fine; the environment itself is authoritative.
	_ = godotenv.Load()

	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "photoshare:", err)
		os.Exit(1)
	}
}
