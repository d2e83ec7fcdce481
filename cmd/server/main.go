// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"astra-chat-go/internal/config"
	"astra-chat-go/internal/handler"
	"astra-chat-go/internal/middleware"
	"astra-chat-go/internal/pipeline"
	"astra-chat-go/internal/repository"
	"astra-chat-go/internal/service"
	"astra-chat-go/internal/store"
	"astra-chat-go/pkg/database"
	"astra-chat-go/pkg/es"
	"astra-chat-go/pkg/kafka"
	"astra-chat-go/pkg/llm"
	"astra-chat-go/pkg/log"
	"astra-chat-go/pkg/storage"
	"astra-chat-go/pkg/token"
	"astra-chat-go/pkg/videogen"
	"astra-chat-go/pkg/websearch"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库与外部依赖
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)
	projectRepo := repository.NewProjectRepository(database.DB)
	agentRepo := repository.NewAgentRepository(database.DB)
	subscriptionRepo := repository.NewSubscriptionRepository(database.DB)
	sessionRepo := repository.NewSessionRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	llmClient := llm.NewClient(cfg.Router)
	videoClient := videogen.NewClient(cfg.VideoGen)
	searchClient := websearch.NewClient(cfg.WebSearch)
	mirror := store.NewMirror()

	contextService := service.NewContextService(searchClient, &cfg.WebSearch)
	dispatchService := service.NewDispatchService(llmClient, videoClient, &cfg.Router, &cfg.VideoGen)
	reconciler := service.NewReconciler(messageRepo)
	chatService := service.NewChatService(
		conversationRepo, messageRepo, agentRepo, sessionRepo,
		contextService, dispatchService, reconciler, mirror, true,
	)
	conversationService := service.NewConversationService(conversationRepo, projectRepo, sessionRepo, mirror)
	projectService := service.NewProjectService(projectRepo, conversationRepo, mirror)
	agentService := service.NewAgentService(agentRepo, sessionRepo)
	billingService := service.NewBillingService(subscriptionRepo, &cfg.Billing)
	searchService := service.NewSearchService(messageRepo, &cfg.Elasticsearch)
	userService := service.NewUserService(userRepo, billingService, jwtManager)

	// 6. 启动后台 Kafka 消费者，把消息写入全文索引
	indexer := pipeline.NewIndexer(cfg.Elasticsearch.IndexName)
	go kafka.StartConsumer(cfg.Kafka, indexer)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewUserHandler(userService, billingService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			users.POST("/register", handler.NewUserHandler(userService, billingService).Register)
			users.POST("/login", handler.NewUserHandler(userService, billingService).Login)

			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager))
			{
				authed.GET("/me", handler.NewUserHandler(userService, billingService).GetProfile)
			}
		}

		chat := apiV1.Group("/chat")
		chat.Use(middleware.AuthMiddleware(jwtManager))
		{
			chat.POST("/send", handler.NewChatHandler(chatService).SendMessage)
		}

		conversations := apiV1.Group("/conversations")
		conversations.Use(middleware.AuthMiddleware(jwtManager))
		{
			conversations.GET("", handler.NewConversationHandler(conversationService).GetConversations)
			conversations.POST("", handler.NewConversationHandler(conversationService).CreateConversation)
			conversations.DELETE("/:id", handler.NewConversationHandler(conversationService).DeleteConversation)
			conversations.PUT("/:id/activate", handler.NewConversationHandler(conversationService).ActivateConversation)
			conversations.PUT("/:id/project", handler.NewConversationHandler(conversationService).AssignProject)
		}

		projects := apiV1.Group("/projects")
		projects.Use(middleware.AuthMiddleware(jwtManager))
		{
			projects.GET("", handler.NewProjectHandler(projectService).GetProjects)
			projects.POST("", handler.NewProjectHandler(projectService).CreateProject)
			projects.DELETE("/:id", handler.NewProjectHandler(projectService).DeleteProject)
		}

		agents := apiV1.Group("/agents")
		agents.Use(middleware.AuthMiddleware(jwtManager))
		{
			agents.GET("", handler.NewAgentHandler(agentService).GetAgents)
			agents.GET("/selected", handler.NewAgentHandler(agentService).GetSelectedAgent)
			agents.PUT("/selected", handler.NewAgentHandler(agentService).SelectAgent)
		}

		search := apiV1.Group("/search")
		search.Use(middleware.AuthMiddleware(jwtManager))
		{
			search.GET("/messages", handler.NewSearchHandler(searchService).SearchMessages)
		}

		attachments := apiV1.Group("/attachments")
		attachments.Use(middleware.AuthMiddleware(jwtManager))
		{
			attachments.POST("/archive", handler.NewAttachmentHandler(&cfg.MinIO).ArchiveAttachment)
		}
	}

	// 镜像事件 WebSocket，token 走路径参数
	r.GET("/events/:token", handler.NewEventsHandler(jwtManager, mirror).Handle)

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
