// Command migrate applies or rolls back the checkout schema.
//
//	migrate up | down | version | to <n> | force <n>
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"ms-checkout/internal/config"
	"ms-checkout/internal/database/migrations"
	"ms-checkout/internal/logger"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate [-dir ./migrations] up|down|version|to <n>|force <n>")
	flag.PrintDefaults()
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	dir := flag.String("dir", cfg.Database.MigrationsDir, "migrations directory")
	dsn := flag.String("dsn", cfg.Database.DSN, "postgres connection string")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	log := logger.New(os.Stdout, cfg.Log.Level)

	sqldb, err := sql.Open("postgres", *dsn)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	defer sqldb.Close()
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}

	runner := migrations.NewRunner(sqldb, migrations.MigrateOptions{MigrationsDir: *dir}, log)
	if err := runner.Initialize(); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	defer runner.Close()

	if err := run(runner, flag.Args()); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
}

func run(r *migrations.Runner, args []string) error {
	switch args[0] {
	case "up":
		return r.MigrateUp()
	case "down":
		return r.MigrateDown()
	case "version":
		v, dirty, err := r.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		return nil
	case "to", "force":
		if len(args) < 2 {
			return fmt.Errorf("%s needs a version", args[0])
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid version %q", args[1])
		}
		if args[0] == "force" {
			return r.Force(n)
		}
		return r.MigrateTo(uint(n))
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
