package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/tillberg/autorestart"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/cli"
)

func main() {
	// Best effort; a missing .env is normal.
	_ = godotenv.Load()

	if os.Getenv("SIFFS_AUTORESTART") != "" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
