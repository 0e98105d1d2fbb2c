// Command migrate applies or rolls back the database schema.
//
// Usage:
//
//	migrate [up|down]
//
// The DSN comes from TOUTLUX_DATABASE_URL (a local .env is honored).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	dbmigrate "toutlux/cmd/internal/db/migrate"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [up|down]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	direction := "up"
	if flag.NArg() > 0 {
		direction = flag.Arg(0)
	}

	_ = godotenv.Load()

	dsn := os.Getenv("TOUTLUX_DATABASE_URL")
	if err := dbmigrate.Run(dsn, direction); err != nil {
		log.Fatal(err)
	}

	log.Printf("migrations %s: done", direction)
}
