package main

import (
	"log"

	"github.com/joho/godotenv"

	"ticketd/internal/app"
)

func main() {
	// Missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
