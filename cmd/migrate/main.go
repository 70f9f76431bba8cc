// Command migrate applies the embedded schema migrations.
//
// Usage:
//
//	migrate up|down|version
//
// The target database comes from TICKETD_DATABASE_URL (a .env file is
// honored when present).
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"ticketd/internal/db"
)

func main() {
	_ = godotenv.Load()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	dbURL := os.Getenv("TICKETD_DATABASE_URL")
	if dbURL == "" {
		log.Fatal("TICKETD_DATABASE_URL is required")
	}

	switch cmd {
	case "up":
		if err := db.MigrateUp(dbURL); err != nil {
			log.Fatal(err)
		}
		fmt.Println("migrations applied")
	case "down":
		if err := db.MigrateDown(dbURL); err != nil {
			log.Fatal(err)
		}
		fmt.Println("rolled back one migration")
	case "version":
		v, dirty, err := db.Version(dbURL)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("version=%d dirty=%v\n", v, dirty)
	default:
		log.Fatalf("unknown command %q (want up, down, or version)", cmd)
	}
}
