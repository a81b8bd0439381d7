package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/collision.report/internal/api"
	"github.com/banshee-data/collision.report/internal/config"
	"github.com/banshee-data/collision.report/internal/db"
	"github.com/banshee-data/collision.report/internal/monitoring"
	"github.com/banshee-data/collision.report/internal/report"
	"github.com/banshee-data/collision.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON config file (defaults apply when empty)")
	input       = flag.String("input", "", "Collision CSV to analyse")
	outDir      = flag.String("out", "", "Directory for charts and the workbook")
	dbPath      = flag.String("db", "", "SQLite run history (empty disables it)")
	listen      = flag.String("listen", "", "Serve the output directory and admin routes on this address after the run")
	verbose     = flag.Bool("verbose", false, "Log every skipped row and blank count")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("collision-report", version.String())
		return
	}
	monitoring.SetVerbose(*verbose)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var database *db.DB
	if path := cfg.GetDBPath(); path != "" {
		database, err = db.NewDB(path)
		if err != nil {
			log.Fatalf("failed to open run history %s: %v", path, err)
		}
		defer database.Close()
	}

	p := &report.Pipeline{
		Config: cfg,
		DB:     database,
		Out:    os.Stdout,
	}
	if _, err := p.Run(ctx); err != nil {
		log.Fatalf("report failed: %v", err)
	}

	if *listen == "" {
		return
	}
	if err := serve(ctx, *listen, cfg.GetOutputDir(), database); err != nil {
		log.Fatalf("HTTP server error: %v", err)
	}
}

// loadConfig layers the config file, COLLISION_* environment variables and
// explicitly set flags, in that order.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		cfg.Merge(loaded)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	var flags config.Config
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			flags.InputPath = input
		case "out":
			flags.OutputDir = outDir
		case "db":
			flags.DBPath = dbPath
		}
	})
	cfg.Merge(&flags)
	return cfg, cfg.Validate()
}

// serve exposes the generated artifacts and, with a run history, the runs
// API plus the tailsql and backup debug routes until ctx is cancelled.
func serve(ctx context.Context, addr, dir string, database *db.DB) error {
	var handler http.Handler
	if database != nil {
		mux := api.NewServer(database, dir).ServeMux()
		if err := database.AttachAdminRoutes(mux); err != nil {
			return fmt.Errorf("failed to attach admin routes: %w", err)
		}
		handler = mux
	} else {
		handler = http.FileServer(http.Dir(dir))
	}

	server := &http.Server{Addr: addr, Handler: api.LoggingMiddleware(handler)}
	go func() {
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
	}()

	log.Printf("serving %s on %s", dir, addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Printf("Graceful shutdown complete")
	return nil
}
