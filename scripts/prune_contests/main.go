package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Prunes terminal contests older than a retention window, together with
// their dependent rows. Settlement records and value transactions are the
// audit trail and are kept. Usage:
//
//	go run scripts/prune_contests/main.go [days]
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	days := 90
	if len(os.Args) > 1 {
		parsed, err := strconv.Atoi(os.Args[1])
		if err != nil || parsed <= 0 {
			log.Fatalf("Invalid retention days: %s", os.Args[1])
		}
		days = parsed
	}

	// Build connection string
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	// Connect to database
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	// Test connection
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	fmt.Println("✅ Connected to database")
	fmt.Printf("Pruning terminal contests older than %d days\n", days)

	cutoff := fmt.Sprintf("NOW() - INTERVAL '%d days'", days)
	target := fmt.Sprintf(`
		SELECT id FROM contests
		WHERE phase IN ('SETTLED', 'EXPIRED', 'REFUNDED')
		AND updated_at < %s
	`, cutoff)

	// Step 1: Delete answer submissions
	result, err := db.Exec(fmt.Sprintf(`
		DELETE FROM answer_submissions
		WHERE contest_id IN (%s)
	`, target))
	if err != nil {
		log.Printf("⚠️  Warning deleting answer_submissions: %v", err)
	} else {
		rows, _ := result.RowsAffected()
		fmt.Printf("🗑️  Deleted %d answer submissions\n", rows)
	}

	// Step 2: Delete contest entries
	result, err = db.Exec(fmt.Sprintf(`
		DELETE FROM contest_entries
		WHERE contest_id IN (%s)
	`, target))
	if err != nil {
		log.Printf("⚠️  Warning deleting contest_entries: %v", err)
	} else {
		rows, _ := result.RowsAffected()
		fmt.Printf("🗑️  Deleted %d contest entries\n", rows)
	}

	// Step 3: Delete the contests themselves
	result, err = db.Exec(fmt.Sprintf(`
		DELETE FROM contests
		WHERE phase IN ('SETTLED', 'EXPIRED', 'REFUNDED')
		AND updated_at < %s
	`, cutoff))
	if err != nil {
		log.Fatalf("Failed to delete contests: %v", err)
	}

	rows, _ := result.RowsAffected()
	fmt.Printf("🗑️  Deleted %d contests\n", rows)
	fmt.Println("✅ Prune complete")
}
