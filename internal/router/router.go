package router

import (
	"context"
	"net/http"
	"time"

	"taskhub/config"
	"taskhub/internal/handler"
	"taskhub/internal/metrics"
	"taskhub/internal/middleware"
	"taskhub/internal/repository"
	"taskhub/internal/service"
	"taskhub/internal/ws"
	"taskhub/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type Deps struct {
	Config  *config.Config
	DB      *gorm.DB
	Cloud   cloudinary.Client   // nil disables uploads
	FCM     *service.FCMService // nil disables mobile push
	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

// App is the wired HTTP engine plus the pieces background workers need.
type App struct {
	Engine        *gin.Engine
	Hub           *ws.Router
	Notifications *service.NotificationService
	Reminders     *service.ReminderService
	Projects      *repository.ProjectRepository
	Tasks         *repository.TaskRepository
}

func Setup(ctx context.Context, d Deps) *App {
	cfg := d.Config
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(ctx, cfg.Server.RateLimit, time.Minute), d.Log))

	// Repositories
	userRepo := repository.NewUserRepository(d.DB)
	projectRepo := repository.NewProjectRepository(d.DB)
	taskRepo := repository.NewTaskRepository(d.DB)
	reminderRepo := repository.NewReminderRepository(d.DB)
	directRepo := repository.NewDirectMessageRepository(d.DB)
	groupRepo := repository.NewGroupMessageRepository(d.DB)
	notificationRepo := repository.NewNotificationRepository(d.DB)

	presence := ws.NewPresence(d.Metrics)
	hub := ws.NewRouter(presence, d.Metrics, d.Log)

	// Services
	notifOpts := []service.NotificationOption{service.WithNotificationMetrics(d.Metrics)}
	if d.FCM != nil {
		notifOpts = append(notifOpts, service.WithMobilePush(userRepo, d.FCM))
		d.Log.Info().Msg("mobile push enabled")
	} else {
		d.Log.Info().Msg("mobile push disabled: set TASKHUB_FIREBASE_SERVICE_ACCOUNT_PATH to enable")
	}
	notifSvc := service.NewNotificationService(notificationRepo, projectRepo, hub, d.Log, notifOpts...)
	msgSvc := service.NewMessageService(directRepo, groupRepo, projectRepo, userRepo, hub, notifSvc, d.Log)
	reminderSvc := service.NewReminderService(taskRepo, reminderRepo, notifSvc, d.Log,
		service.WithReminderWindow(cfg.Reminder.Window),
		service.WithReminderMetrics(d.Metrics))

	// Handlers
	socketHandler := handler.NewSocketHandler(&cfg.JWT, cfg.WebSocket, hub, msgSvc, d.Log)
	messageHandler := handler.NewMessageHandler(msgSvc)
	notificationHandler := handler.NewNotificationHandler(notifSvc)
	presenceHandler := handler.NewPresenceHandler(presence)
	adminHandler := handler.NewAdminHandler(reminderSvc)
	uploadHandler := handler.NewUploadHandler(d.Cloud, cfg.Cloudinary.Folder)

	authMw := middleware.AuthRequired(&cfg.JWT)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": hub.ConnectionCount()})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	r.GET("/ws", socketHandler.ServeWS)

	api := r.Group("/api/v1")
	api.Use(authMw)
	{
		messages := api.Group("/messages")
		{
			messages.POST("/direct", messageHandler.SendDirect)
			messages.GET("/direct", messageHandler.Conversations)
			messages.GET("/direct/:id", messageHandler.Conversation)
			messages.POST("/direct/:id/read", messageHandler.MarkConversationRead)
			messages.DELETE("/direct/:id", messageHandler.DeleteDirect)
		}

		projects := api.Group("/projects/:id/messages")
		{
			projects.POST("", messageHandler.SendProject)
			projects.GET("", messageHandler.ListProject)
			projects.POST("/read", messageHandler.MarkProjectRead)
			projects.DELETE("/:message_id", messageHandler.DeleteProject)
		}

		me := api.Group("/me")
		{
			me.GET("/notifications", notificationHandler.List)
			me.GET("/notifications/unread-count", notificationHandler.UnreadCount)
			me.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
			me.DELETE("/notifications/:id", notificationHandler.Delete)
		}

		api.GET("/presence/online", presenceHandler.Online)
		api.POST("/uploads/chat", uploadHandler.UploadChatMedia)

		admin := api.Group("/admin")
		admin.Use(middleware.AdminRequired())
		{
			admin.POST("/reminders/run", adminHandler.RunReminders)
		}
	}

	return &App{
		Engine:        r,
		Hub:           hub,
		Notifications: notifSvc,
		Reminders:     reminderSvc,
		Projects:      projectRepo,
		Tasks:         taskRepo,
	}
}
