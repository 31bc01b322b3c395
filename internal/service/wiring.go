package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/events"
	"github.com/spec-kit/queue-engine/internal/observability"
	"github.com/spec-kit/queue-engine/internal/repository"
)

// Stores groups the repositories the queue components run on.
type Stores struct {
	Departments   repository.DepartmentRepository
	Tickets       repository.TicketRepository
	Notifications repository.NotificationRepository
	Queue         repository.QueueStore
}

// Options configures Wire.
type Options struct {
	Stores         Stores
	Cache          DepartmentCache
	Dispatcher     events.Dispatcher
	Resolver       RecipientResolver
	Retry          RetryPolicy
	Clock          func() time.Time
	Location       *time.Location
	Channel        string
	AheadPositions int
	Logger         *zap.Logger
	Metrics        *observability.Metrics
}

// Components holds every wired queue component.
type Components struct {
	Registry      *DepartmentRegistry
	Sequencer     *TicketSequencer
	StateMachine  *QueueStateMachine
	Estimator     *WaitEstimator
	Notifications *NotificationService
	Engine        *QueueEngine
}

// Wire builds the components and subscribes notifications to ticket events.
func Wire(opts Options) *Components {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = events.NewInMemoryDispatcher(opts.Logger)
	}

	registry := NewDepartmentRegistry(RegistryDependencies{
		DepartmentRepo: opts.Stores.Departments,
		Cache:          opts.Cache,
		Clock:          opts.Clock,
		Location:       opts.Location,
		Logger:         opts.Logger.Named("registry"),
	})
	sequencer := NewTicketSequencer(SequencerDependencies{
		QueueStore: opts.Stores.Queue,
		Registry:   registry,
		Dispatcher: opts.Dispatcher,
		Retry:      opts.Retry,
		Clock:      opts.Clock,
		Location:   opts.Location,
		Logger:     opts.Logger.Named("sequencer"),
		Metrics:    opts.Metrics,
	})
	stateMachine := NewQueueStateMachine(StateMachineDependencies{
		QueueStore: opts.Stores.Queue,
		TicketRepo: opts.Stores.Tickets,
		Dispatcher: opts.Dispatcher,
		Retry:      opts.Retry,
		Clock:      opts.Clock,
		Logger:     opts.Logger.Named("state_machine"),
		Metrics:    opts.Metrics,
	})
	estimator := NewWaitEstimator(opts.Stores.Tickets, registry)
	notifications := NewNotificationService(NotificationDependencies{
		NotificationRepo: opts.Stores.Notifications,
		Dispatcher:       opts.Dispatcher,
		Estimator:        estimator,
		Registry:         registry,
		Resolver:         opts.Resolver,
		Channel:          opts.Channel,
		AheadPositions:   opts.AheadPositions,
		Clock:            opts.Clock,
		Logger:           opts.Logger.Named("notifications"),
		Metrics:          opts.Metrics,
	})
	notifications.RegisterHandlers()

	return &Components{
		Registry:      registry,
		Sequencer:     sequencer,
		StateMachine:  stateMachine,
		Estimator:     estimator,
		Notifications: notifications,
		Engine: NewQueueEngine(EngineDependencies{
			Registry:      registry,
			Sequencer:     sequencer,
			StateMachine:  stateMachine,
			Estimator:     estimator,
			Notifications: notifications,
			TicketRepo:    opts.Stores.Tickets,
		}),
	}
}
