package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"tasksync/internal/db"
	"tasksync/internal/logger"
	"tasksync/internal/repository"

	"github.com/joho/godotenv"
)

// Lists the Postgres migrations, or applies them with -apply. With
// DATABASE_DRIVER=sqlite the embedded schema is applied to SQLITE_PATH.
func main() {
	apply := flag.Bool("apply", false, "apply migrations")
	dir := flag.String("dir", filepath.Join("internal", "migrations"), "migrations directory")
	flag.Parse()

	_ = godotenv.Load()
	ctx := context.Background()

	if os.Getenv("DATABASE_DRIVER") == "sqlite" {
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "tasksync.sqlite3"
		}
		sqlDB, err := db.OpenSQLite(path)
		if err != nil {
			logger.Fatal("open sqlite", "error", err)
		}
		defer sqlDB.Close()
		if err := repository.NewSQLiteTaskRepository(sqlDB).Migrate(ctx); err != nil {
			logger.Fatal("migrate sqlite", "error", err)
		}
		fmt.Printf("applied sqlite schema to %s\n", path)
		return
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}

	files, err := os.ReadDir(*dir)
	if err != nil {
		logger.Fatal("read migrations dir", "error", err)
	}
	if !*apply {
		for _, f := range files {
			fmt.Println(f.Name())
		}
		return
	}

	pool := db.Connect(dsn)
	defer pool.Close()

	for _, f := range files {
		name := f.Name()
		b, err := os.ReadFile(filepath.Join(*dir, name))
		if err != nil {
			logger.Fatal("read migration", "file", name, "error", err)
		}
		if _, err := pool.Exec(ctx, string(b)); err != nil {
			logger.Fatal("apply migration", "file", name, "error", err)
		}
		fmt.Printf("applied %s\n", name)
	}
}
