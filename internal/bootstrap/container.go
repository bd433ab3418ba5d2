package bootstrap

import (
	"context"
	"errors"

	"turion-be/internal/config"
	"turion-be/internal/controller"
	"turion-be/internal/handler"
	"turion-be/internal/pkg/logger"
	"turion-be/internal/repository/memory"
	"turion-be/internal/repository/unitofwork"
	"turion-be/internal/service"
	"turion-be/internal/websocket"
	"turion-be/pkg/events"
	"turion-be/pkg/generation"
	"turion-be/pkg/llm"
	"turion-be/pkg/llm/factory"
	memoryExtractor "turion-be/pkg/memory"
	pktNats "turion-be/pkg/nats"
	"turion-be/pkg/process"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	ConversationController controller.IConversationController
	CreditController       controller.ICreditController
	ProjectController      controller.IProjectController
	NotificationHandler    *handler.NotificationHandler

	// Background work, started by main.
	ConsumerService     service.IConsumerService
	NotificationService *service.NotificationService
	BillingService      *service.BillingEventService
	ProjectService      service.IProjectService
	WebSocketHub        *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	c := &Container{Logger: sysLogger}

	// In-process job queue
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// Event bus. Both ends are optional; without NATS events are dropped and
	// purchases are not credited.
	var bus events.Bus
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		sysLogger.Warn("BOOT", "NATS publisher unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		bus = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		sysLogger.Warn("BOOT", "NATS subscriber unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		c.closers = append(c.closers, natsSub.Close)
	}
	domainPublisher := events.NewDomainPublisher(bus, sysLogger)

	// Redis fans websocket pushes out to the other instances.
	var rdb *redis.Client
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb = redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		sysLogger.Warn("BOOT", "Redis unavailable, websocket pushes stay local", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		rdb = nil
	} else {
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	wsLogger := logger.NewIsolatedLogger(cfg.App.WsLogFilePath)
	c.WebSocketHub = websocket.NewHub(rdb, wsLogger)

	// Providers
	primary := newProvider(cfg.Ai.PrimaryProvider, cfg.Ai.Providers, sysLogger)
	secondary := newProvider(cfg.Ai.FallbackProvider, cfg.Ai.Providers, sysLogger)
	fallback := generation.NewFallback(primary, secondary)

	// Services
	creditService := service.NewCreditService(uowFactory, domainPublisher, sysLogger)
	memoryService := service.NewMemoryService(uowFactory, memoryExtractor.NewExtractor(memoryExtractor.NewRegexClassifier()), sysLogger)
	jobs := service.NewPublisherService(pubSub, cfg.Jobs.SummarizeTopic)
	chatService := service.NewChatService(uowFactory, fallback, creditService, memoryService, jobs, sysLogger)

	c.ConsumerService = service.NewConsumerService(pubSub, cfg.Jobs.SummarizeTopic, uowFactory, fallback.Summarizer(), creditService, sysLogger)

	allocator := service.NewPortAllocator(uowFactory, cfg.Projects.PortRange())
	c.ProjectService = service.NewProjectService(
		uowFactory,
		allocator,
		service.NewBuildStepTracker(uowFactory),
		process.NewOSRunner(),
		memory.NewProcessRegistry(),
		creditService,
		domainPublisher,
		c.WebSocketHub,
		service.ProjectSettings{
			Dir:             cfg.Projects.Dir,
			PreviewDomain:   cfg.Projects.PreviewDomain,
			ScaffoldTimeout: cfg.Projects.ScaffoldTimeout,
			StopTimeout:     cfg.Projects.StopTimeout,
		},
		sysLogger,
	)

	if natsSub != nil {
		c.NotificationService = service.NewNotificationService(natsSub, c.WebSocketHub, wsLogger)
		c.BillingService = service.NewBillingEventService(natsSub, creditService, sysLogger)
	}

	c.ConversationController = controller.NewConversationController(chatService, sysLogger)
	c.CreditController = controller.NewCreditController(creditService)
	c.ProjectController = controller.NewProjectController(c.ProjectService)
	c.NotificationHandler = handler.NewNotificationHandler(c.WebSocketHub, wsLogger)

	return c
}

// newProvider returns nil when the provider has no credential, leaving the
// fallback to the other one.
func newProvider(name string, settings factory.Settings, log logger.ILogger) llm.LLMProvider {
	provider, err := factory.NewLLMProvider(context.Background(), name, settings)
	if err != nil {
		level := log.Error
		if errors.Is(err, llm.ErrProviderUnavailable) {
			level = log.Warn
		}
		level("BOOT", "LLM provider disabled", map[string]interface{}{"provider": name, "error": err.Error()})
		return nil
	}
	log.Info("BOOT", "LLM provider ready", map[string]interface{}{"provider": name, "name": provider.Name()})
	return provider
}

// Close releases broker and cache connections in reverse order.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
