// Command mfactl runs operator tasks: schema migrations and audit job management.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-mfa/cmd/mfactl/cli"
	"github.com/odyssey-erp/odyssey-mfa/internal/app"
	"github.com/odyssey-erp/odyssey-mfa/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-mfa/internal/platform/db"
	"github.com/odyssey-erp/odyssey-mfa/jobs"
)

const usage = `usage:
  mfactl migrate
  mfactl jobs trigger [-retention-days N] audit:prune
  mfactl jobs inspect [-json]
`

func main() {
	if app.InTestMode() {
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	logger := app.NewLogger(cfg)

	switch args[0] {
	case "migrate":
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 2})
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			return 1
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			return 1
		}
		_, _ = fmt.Fprintln(stdout, "migrations applied")
		return 0
	case "jobs":
		return runJobs(ctx, cfg, args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	opts, err := cache.Options(cfg.RedisAddr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs: %v\n", err)
		return 1
	}
	jobsCLI := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: opts.Addr, Username: opts.Username, Password: opts.Password, DB: opts.DB})
	defer func() {
		_ = jobsCLI.Close()
	}()

	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		fs.SetOutput(stderr)
		retention := fs.Int("retention-days", cfg.AuditRetentionDays, "audit retention in days")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		job := jobs.TaskAuditPrune
		if fs.NArg() > 0 {
			job = fs.Arg(0)
		}
		return jobsCLI.TriggerCommand(ctx, cli.TriggerOptions{Job: job, RetentionDays: *retention, Stdout: stdout, Stderr: stderr})
	case "inspect":
		fs := flag.NewFlagSet("jobs inspect", flag.ContinueOnError)
		fs.SetOutput(stderr)
		asJSON := fs.Bool("json", false, "print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return jobsCLI.InspectCommand(cli.InspectOptions{JSONOutput: *asJSON, Stdout: stdout, Stderr: stderr})
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
}
