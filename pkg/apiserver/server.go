package apiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/relaypoint/relaypoint/pkg/apiserver/handlers"
	"github.com/relaypoint/relaypoint/pkg/apiserver/middleware"
	"github.com/relaypoint/relaypoint/pkg/config"
	"github.com/relaypoint/relaypoint/pkg/denorm"
	"github.com/relaypoint/relaypoint/pkg/eventbus"
	"github.com/relaypoint/relaypoint/pkg/pipeline"
	"github.com/relaypoint/relaypoint/pkg/store"
	"github.com/relaypoint/relaypoint/pkg/store/clickhouse"
	"github.com/relaypoint/relaypoint/pkg/store/postgres"
	redisclient "github.com/relaypoint/relaypoint/pkg/store/redis"
)

type Server struct {
	router *gin.Engine
	db     *postgres.Store
	redis  *redisclient.Client
	cfg    *config.Config
	logger *zap.Logger
	bus    *eventbus.Bus
}

func NewServer(db *postgres.Store, redis *redisclient.Client, cfg *config.Config, logger *zap.Logger, bus *eventbus.Bus) *Server {
	s := &Server{
		db:     db,
		redis:  redis,
		cfg:    cfg,
		logger: logger,
		bus:    bus,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	var gdb *gorm.DB
	if s.db != nil {
		gdb = s.db.DB()
	}

	entities := postgres.NewEntityRepository(gdb)
	resolver := denorm.NewResolver(entities, s.logger)
	committer := pipeline.NewCommitter(gdb, resolver, s.logger)

	var deliveryLog store.DeliveryLogStore
	if s.cfg.DeliveryLog.StorageDriver == "clickhouse" {
		s.logger.Info("using clickhouse for delivery log storage")
		var err error
		deliveryLog, err = clickhouse.NewClickHouseDeliveryStore(
			s.cfg.ClickHouse.Hosts[0],
			s.cfg.ClickHouse.Database,
			s.cfg.ClickHouse.User,
			s.cfg.ClickHouse.Password,
			s.logger,
		)
		if err != nil {
			s.logger.Fatal("failed to initialize clickhouse delivery store", zap.Error(err))
		}
	} else {
		deliveryLog = postgres.NewDeliveryLogRepository(gdb)
	}

	api := r.Group("/api/v1")
	{
		api.Use(middleware.Auth(s.cfg.Auth))

		taskHandler := handlers.NewTaskHandler(committer, entities, s.logger)
		api.POST("/tasks", taskHandler.Create)
		api.GET("/tasks", taskHandler.List)
		api.GET("/tasks/:id", taskHandler.Get)
		api.PUT("/tasks/:id", taskHandler.Update)
		api.DELETE("/tasks/:id", taskHandler.Delete)

		reminderHandler := handlers.NewReminderHandler(committer, postgres.NewReminderRepository(gdb), s.logger)
		api.POST("/tasks/:id/reminders", reminderHandler.Create)
		api.GET("/tasks/:id/reminders", reminderHandler.ListByTask)
		api.PUT("/reminders/:id", reminderHandler.Update)
		api.DELETE("/reminders/:id", reminderHandler.Delete)

		contactHandler := handlers.NewContactHandler(committer, entities, s.logger)
		api.POST("/contacts", contactHandler.Create)
		api.GET("/contacts", contactHandler.List)
		api.PUT("/contacts/:id", contactHandler.Update)
		api.DELETE("/contacts/:id", contactHandler.Delete)
		api.POST("/members", contactHandler.CreateMember)
		api.GET("/members", contactHandler.ListMembers)

		subscriptionHandler := handlers.NewSubscriptionHandler(postgres.NewSubscriptionRepository(gdb), deliveryLog, s.logger)
		api.POST("/subscriptions", subscriptionHandler.Create)
		api.GET("/subscriptions", subscriptionHandler.List)
		api.GET("/subscriptions/:id", subscriptionHandler.Get)
		api.PUT("/subscriptions/:id", subscriptionHandler.Update)
		api.DELETE("/subscriptions/:id", subscriptionHandler.Delete)
		api.GET("/subscriptions/:id/deliveries", subscriptionHandler.ListDeliveries)

		workflowHandler := handlers.NewWorkflowHandler(postgres.NewWorkflowRepository(gdb), s.logger)
		api.POST("/workflows", workflowHandler.Create)
		api.GET("/workflows", workflowHandler.List)
		api.GET("/workflows/:id", workflowHandler.Get)
		api.PUT("/workflows/:id", workflowHandler.Update)
		api.DELETE("/workflows/:id", workflowHandler.Delete)
		api.GET("/workflows/:id/executions", workflowHandler.ListExecutions)
	}

	s.router = r
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
