package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"

	"github.com/taskforge/taskforge/internal/lock"
)

const schema = "taskforge"

// Open connects to Postgres and verifies the connection.
func Open(postgresURL string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// Migrate creates the schema and runs every SQL script in migrationsDir in
// lexical order. A distributed lock ensures only one instance migrates at a
// time.
func Migrate(conn *sql.DB, migrationsDir string, distributedLock lock.DistributedLockManager) error {
	if err := distributedLock.Acquire(lock.MigrationLock); err != nil {
		return err
	}
	defer distributedLock.Release(lock.MigrationLock)

	if _, err := conn.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	scripts, err := readSQLScripts(migrationsDir)
	if err != nil {
		return err
	}
	for _, script := range scripts {
		log.Printf("db: applying migration %s", script.name)
		if _, err := conn.Exec(script.content); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", script.name, err)
		}
	}
	return nil
}

type sqlScript struct {
	name    string
	content string
}

func readSQLScripts(dir string) ([]sqlScript, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations dir: %w", err)
	}

	// os.ReadDir returns entries sorted by name.
	var scripts []sqlScript
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}
		scripts = append(scripts, sqlScript{name: entry.Name(), content: string(content)})
	}
	return scripts, nil
}
