package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Seeds operator accounts directly into the operators table. Usage:
//
//	go run scripts/seed_operators/main.go <account> [<account> ...]
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	if len(os.Args) < 2 {
		log.Fatal("Usage: seed_operators <account> [<account> ...]")
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
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Println("Connected to database successfully")

	seeded := 0
	for _, account := range os.Args[1:] {
		result, err := db.Exec(`
			INSERT INTO operators (account, added_by, created_at)
			VALUES ($1, 'seed-script', NOW())
			ON CONFLICT (account) DO NOTHING
		`, account)
		if err != nil {
			log.Fatalf("Failed to seed operator %s: %v", account, err)
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			log.Printf("Operator %s already present, skipping", account)
			continue
		}
		log.Printf("Seeded operator: %s", account)
		seeded++
	}

	log.Printf("✅ Done! Seeded %d new operator(s)", seeded)
}
