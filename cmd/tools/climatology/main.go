// Package main implements the climatology CLI for managing the monthly
// climatology table outside the API server.
//
// Usage:
//
//	go run ./cmd/tools/climatology --task=seed
//	go run ./cmd/tools/climatology --task=check
//	go run ./cmd/tools/climatology --task=dump --source=postgres
//	go run ./cmd/tools/climatology --task=seed --dry-run
//	go run ./cmd/tools/climatology --list
//
// DATABASE_URL is read from the environment (or a .env file via godotenv)
// for every task that touches Postgres. In --dry-run mode the built-in table
// is printed as JSON and nothing is written.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"skyrisk/internal/climatology"
	"skyrisk/internal/config"
	"skyrisk/internal/db"
	"skyrisk/internal/types"
)

// Task names accepted by --task.
const (
	taskSeed  = "seed"
	taskCheck = "check"
	taskDump  = "dump"
)

var validTasks = map[string]string{
	taskSeed:  "Upsert the built-in demo table into climatology_monthly",
	taskCheck: "Verify climatology_monthly holds all twelve months",
	taskDump:  "Print the table of --source as JSON",
}

// store is the subset of climatology.PostgresSource the tasks use.
type store interface {
	All(ctx context.Context) ([]types.ClimatologyRecord, error)
	Seed(ctx context.Context) error
	Check(ctx context.Context) error
}

func main() {
	taskFlag := flag.String("task", "", "Task to execute (seed, check, dump)")
	sourceFlag := flag.String("source", config.ClimatologyStatic, "Table to dump: static or postgres")
	listFlag := flag.Bool("list", false, "List all available tasks and exit")
	dryRunFlag := flag.Bool("dry-run", false, "Print the built-in table without touching the database")
	timeoutFlag := flag.Duration("timeout", 30*time.Second, "Overall deadline for the task")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: climatology [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Manage the SkyRisk climatology table.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *listFlag {
		printAvailableTasks(os.Stdout)
		return
	}
	if _, ok := validTasks[*taskFlag]; !ok {
		fmt.Fprintf(os.Stderr, "error: unknown or missing --task %q\n\n", *taskFlag)
		printAvailableTasks(os.Stderr)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	runID := uuid.NewString()
	logger = logger.With("run_id", runID, "task", *taskFlag)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeoutFlag)
	defer cancelTimeout()

	if *dryRunFlag || (*taskFlag == taskDump && *sourceFlag == config.ClimatologyStatic) {
		if err := executeTask(ctx, taskDump, climatology.NewStaticSource(), os.Stdout); err != nil {
			logger.Error("task execution failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded (this is fine in production)", "error", err)
	}

	pool, err := db.NewPool(ctx, config.DatabaseConfig{
		URL:            config.SecretString(os.Getenv("DATABASE_URL")),
		MaxConns:       2,
		AcquireTimeout: 5 * time.Second,
	})
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := executeTask(ctx, *taskFlag, climatology.NewPostgresSource(pool), os.Stdout); err != nil {
		logger.Error("task execution failed", "error", err)
		os.Exit(1)
	}
	logger.Info("task execution succeeded")
}

// executeTask runs task against src, writing any output to out.
func executeTask(ctx context.Context, task string, src store, out io.Writer) error {
	switch task {
	case taskSeed:
		if err := src.Seed(ctx); err != nil {
			return err
		}
		return src.Check(ctx)
	case taskCheck:
		return src.Check(ctx)
	case taskDump:
		records, err := src.All(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	default:
		return errors.New("unknown task " + task)
	}
}

func printAvailableTasks(w io.Writer) {
	names := make([]string, 0, len(validTasks))
	for name := range validTasks {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "Available tasks:\n")
	for _, name := range names {
		fmt.Fprintf(w, "  %-6s %s\n", name, validTasks[name])
	}
}
