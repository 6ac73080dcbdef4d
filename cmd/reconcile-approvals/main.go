// reconcile-approvals repairs project approvals whose parent timesheet is
// frozen but which were never marked approved.
//
// Without --ids it sweeps every frozen timesheet. With --ids it approves
// exactly the listed approval records, whatever their parent status, and
// records an audit entry. --dry-run reports what would change without
// writing.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	"github.com/Siva2k2k/ES-TM-sub003/internal/repository"
	"github.com/Siva2k2k/ES-TM-sub003/internal/service"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/cache"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/config"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/database"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/logger"
)

type options struct {
	ids    []string
	dryRun bool
	env    string
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("reconcile-approvals", pflag.ContinueOnError)
	flagSet.StringSliceVar(&opts.ids, "ids", nil, "comma separated approval ids to force-approve (targeted run)")
	flagSet.BoolVar(&opts.dryRun, "dry-run", false, "report what would change without writing")
	flagSet.StringVar(&opts.env, "env", "", "override ENV before loading configuration")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return opts, nil
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if opts.env != "" {
		if err := os.Setenv("ENV", opts.env); err != nil {
			return fmt.Errorf("set ENV: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	svc := service.NewReconciliationService(
		repository.NewTimesheetRepository(db),
		repository.NewApprovalRepository(db),
		repository.NewLockRepository(redisClient),
		repository.NewUserRepository(db),
		nil,
		service.NewClock(cfg.Clock),
		logr,
		service.ReconciliationConfig{LockKey: cfg.Reconciliation.LockKey, LockTTL: cfg.Reconciliation.LockTTL},
	)

	report, err := reconcile(ctx, svc, opts)
	if err != nil {
		logr.Error("reconciliation failed", zap.Error(err))
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

type reconciler interface {
	Reconcile(ctx context.Context, opts service.ReconcileOptions) (*models.ReconcileReport, error)
	ReconcileByIDs(ctx context.Context, ids []string, opts service.ReconcileOptions) (*models.ReconcileReport, error)
}

func reconcile(ctx context.Context, svc reconciler, opts options) (*models.ReconcileReport, error) {
	runOpts := service.ReconcileOptions{DryRun: opts.dryRun, UserAgent: "reconcile-approvals"}
	if len(opts.ids) > 0 {
		return svc.ReconcileByIDs(ctx, opts.ids, runOpts)
	}
	return svc.Reconcile(ctx, runOpts)
}
