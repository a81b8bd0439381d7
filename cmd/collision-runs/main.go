package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/collision.report/internal/db"
	"github.com/banshee-data/collision.report/internal/version"
)

var (
	dbPath      = flag.String("db", "collision_runs.db", "SQLite run history")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		db.NewRunsCLI(nil, os.Stderr).PrintUsage()
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("collision-runs", version.String())
		return
	}

	args := flag.Args()
	if len(args) > 0 && args[0] == "migrate" {
		if err := db.RunMigrateCommand(args[1:], *dbPath, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *dbPath, err)
	}
	defer database.Close()

	if err := db.NewRunsCLI(database, os.Stdout).Run(ctx, args); err != nil {
		log.Fatalf("%v", err)
	}
}
