// queuectl is the operator command line for the queue engine. It talks to
// the same Postgres database as the API and runs every action through the
// engine, so locking and retries behave as they do for HTTP callers.
//
// Notifications enqueued by queuectl are delivered by the API's worker on its
// next poll.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/api/dto"
	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/observability"
	"github.com/spec-kit/queue-engine/internal/persistence"
	"github.com/spec-kit/queue-engine/internal/repository"
	"github.com/spec-kit/queue-engine/internal/service"
	apperrors "github.com/spec-kit/queue-engine/pkg/util/errorutil"
)

const usage = `Usage: queuectl <command> [flags]

Commands:
  book        --department ID --patient ID [--notes TEXT] [--emergency]
  call-next   --department ID
  complete    --ticket ID
  cancel      --ticket ID
  skip        --ticket ID
  escalate    --ticket ID
  status      --ticket ID | --department ID
  failed      [--limit N]
  migrate     [--dir PATH]
`

var knownCommands = map[string]bool{
	"book": true, "call-next": true, "complete": true, "cancel": true, "skip": true,
	"escalate": true, "status": true, "failed": true, "migrate": true,
}

// exitError carries a process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) ExitCode() int { return e.code }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var coder *exitError
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(out, usage)
		return nil
	}
	command, args := args[0], args[1:]
	if !knownCommands[command] {
		return usageError("unknown command " + command)
	}

	var (
		ticketID     string
		departmentID string
		patientID    string
		notes        string
		emergency    bool
		limit        int
		migrationDir string
		logLevel     string
	)
	flagSet := pflag.NewFlagSet("queuectl "+command, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVarP(&ticketID, "ticket", "t", "", "ticket id")
	flagSet.StringVarP(&departmentID, "department", "d", "", "department id")
	flagSet.StringVar(&patientID, "patient", "", "patient id (book)")
	flagSet.StringVar(&notes, "notes", "", "ticket notes (book)")
	flagSet.BoolVar(&emergency, "emergency", false, "book with EMERGENCY priority")
	flagSet.IntVar(&limit, "limit", 50, "maximum number of failed notifications to list")
	flagSet.StringVar(&migrationDir, "dir", "", "migrations directory (default POSTGRES_MIGRATIONS_DIR)")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprint(out, usage)
			return nil
		}
		return &exitError{code: 2, err: err}
	}
	if flagSet.NArg() > 0 {
		return &exitError{code: 2, err: fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Logger.Level = logLevel
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	pool := pg.PoolHandle()

	if command == "migrate" {
		if migrationDir == "" {
			migrationDir = cfg.Postgres.MigrationsDir
		}
		if err := persistence.RunMigrations(ctx, pool, migrationDir, logger); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations applied")
		return nil
	}

	cache, closeCache := openDepartmentCache(ctx, cfg.Redis, logger)
	defer closeCache()

	engine := service.Wire(service.Options{
		Stores: service.Stores{
			Departments:   repository.NewDepartmentRepository(pool),
			Tickets:       repository.NewTicketRepository(pool),
			Notifications: repository.NewNotificationRepository(pool),
			Queue: repository.NewQueueStore(pool, repository.QueueStoreOptions{
				LockTimeout:  cfg.Queue.LockTimeout,
				Serializable: cfg.Queue.Serializable,
			}),
		},
		Cache: cache,
		Retry: service.RetryPolicy{
			MaxAttempts: cfg.Queue.RetryMaxAttempts,
			Initial:     cfg.Queue.RetryInitial,
			Max:         cfg.Queue.RetryMax,
		},
		Location:       cfg.Queue.Timezone,
		Channel:        cfg.Notification.Channel,
		AheadPositions: cfg.Notification.AheadPositions,
		Logger:         logger,
	}).Engine

	result, err := execute(ctx, engine, command, commandArgs{
		ticketID:     ticketID,
		departmentID: departmentID,
		patientID:    patientID,
		notes:        notes,
		emergency:    emergency,
		limit:        limit,
	})
	if err != nil {
		logger.Debug("command failed", zap.String("command", command), zap.Error(err))
		return describe(err)
	}
	return printJSON(out, result)
}

// openDepartmentCache connects to the Redis department cache the API reads
// from, so bookings made here evict the entries they made stale. The cache is
// nil when Redis is not configured or did not answer.
func openDepartmentCache(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (service.DepartmentCache, func()) {
	if cfg.Addr == "" {
		return nil, func() {}
	}
	redis, err := persistence.NewRedis(ctx, cfg, logger)
	if err != nil {
		redis.Close()
		return nil, func() {}
	}
	return persistence.NewDepartmentCache(redis, cfg.RegistryTTL), redis.Close
}

type commandArgs struct {
	ticketID     string
	departmentID string
	patientID    string
	notes        string
	emergency    bool
	limit        int
}

func execute(ctx context.Context, engine *service.QueueEngine, command string, args commandArgs) (any, error) {
	switch command {
	case "book":
		if args.departmentID == "" || args.patientID == "" {
			return nil, usageError("book requires --department and --patient")
		}
		priority := domain.TicketPriorityNormal
		if args.emergency {
			priority = domain.TicketPriorityEmergency
		}
		booking, err := engine.BookTicket(ctx, service.IssueInput{
			PatientID:    args.patientID,
			DepartmentID: args.departmentID,
			Notes:        args.notes,
			Priority:     priority,
		})
		if err != nil {
			return nil, err
		}
		return dto.BookingResponse{
			Ticket:               dto.NewTicketResponse(&booking.Ticket),
			Position:             booking.Position,
			EstimatedWaitMinutes: booking.EstimatedWaitMinutes,
		}, nil
	case "call-next":
		if args.departmentID == "" {
			return nil, usageError("call-next requires --department")
		}
		return ticketResult(engine.CallNext(ctx, args.departmentID))
	case "complete", "cancel", "skip", "escalate":
		if args.ticketID == "" {
			return nil, usageError(command + " requires --ticket")
		}
		actions := map[string]func(context.Context, string) (*domain.Ticket, error){
			"complete": engine.CompleteTicket,
			"cancel":   engine.CancelTicket,
			"skip":     engine.SkipTicket,
			"escalate": engine.EscalateTicket,
		}
		return ticketResult(actions[command](ctx, args.ticketID))
	case "status":
		switch {
		case args.ticketID != "":
			status, err := engine.TicketStatus(ctx, args.ticketID)
			if err != nil {
				return nil, err
			}
			return dto.NewQueueStatusResponse(status), nil
		case args.departmentID != "":
			status, snapshot, err := engine.DepartmentStatus(ctx, args.departmentID)
			if err != nil {
				return nil, err
			}
			return dto.DepartmentQueueResponse{
				Status: dto.NewQueueStatusResponse(status),
				Queue:  dto.NewQueueEntries(snapshot),
			}, nil
		default:
			return nil, usageError("status requires --ticket or --department")
		}
	case "failed":
		failed, err := engine.FailedNotifications(ctx, args.limit)
		if err != nil {
			return nil, err
		}
		return dto.NewNotificationResponses(failed), nil
	default:
		return nil, usageError("unknown command " + command)
	}
}

func ticketResult(ticket *domain.Ticket, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return dto.NewTicketResponse(ticket), nil
}

func usageError(message string) error {
	return &exitError{code: 2, err: fmt.Errorf("%s\n\n%s", message, usage)}
}

// describe turns engine errors into operator-facing messages.
func describe(err error) error {
	var exit *exitError
	if errors.As(err, &exit) {
		return err
	}
	domainErr := apperrors.ToDomainError(err)
	if domainErr.HTTPStatus >= 500 {
		return &exitError{code: 1, err: fmt.Errorf("%s (%s): %w", domainErr.Message, domainErr.Code, err)}
	}
	return &exitError{code: 3, err: fmt.Errorf("%s (%s)", domainErr.Message, domainErr.Code)}
}

func printJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
