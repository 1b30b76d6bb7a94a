package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// One-off maintenance tool: removes analyses and their attempt trails
// older than the retention window.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		log.Fatalf("DATABASE_URL is not set")
	}

	retention := os.Getenv("RETENTION")
	if retention == "" {
		retention = "90 days"
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	res, err := db.Exec(
		`DELETE FROM provider_attempts
		 WHERE request_id IN (SELECT request_id FROM analyses WHERE analyzed_at < now() - $1::interval)`,
		retention,
	)
	if err != nil {
		log.Fatalf("Failed to purge attempts: %v", err)
	}
	attempts, _ := res.RowsAffected()

	res, err = db.Exec(`DELETE FROM analyses WHERE analyzed_at < now() - $1::interval`, retention)
	if err != nil {
		log.Fatalf("Failed to purge analyses: %v", err)
	}
	analyses, _ := res.RowsAffected()

	fmt.Printf("Purged %d analyses and %d attempts older than %s\n", analyses, attempts, retention)
}
