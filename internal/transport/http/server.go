package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"studyai/internal/ai"
	appsvc "studyai/internal/app"
	"studyai/internal/bootstrap"
	"studyai/internal/cache"
	"studyai/internal/repository"
	"studyai/internal/transport/http/handler"
	"studyai/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())

	sessionRepo := repository.NewSessionRepository(app.DB)
	documentRepo := repository.NewDocumentRepository(app.DB)
	messageRepo := repository.NewMessageRepository(app.DB)

	var historyCache appsvc.HistoryCache
	if app.Redis != nil {
		historyCache = cache.NewHistoryCache(
			app.Redis,
			time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
	}

	locks := appsvc.NewSessionLocks()
	generator := ai.NewOllamaClient(time.Duration(app.Config.Ollama.TimeoutSeconds) * time.Second)

	sessionService := appsvc.NewSessionService(sessionRepo, documentRepo, messageRepo, app.FileStore, historyCache)
	documentService := appsvc.NewDocumentService(sessionRepo, documentRepo, app.FileStore, locks)
	chatService := appsvc.NewChatService(sessionRepo, documentRepo, messageRepo, historyCache, generator, locks, appsvc.ChatServiceOptions{
		GenerateConfig: ai.GenerateConfig{
			BaseURL: app.Config.Ollama.BaseURL,
			Model:   app.Config.Ollama.Model,
		},
		MaxContextChars:    app.Config.Context.MaxChars,
		MaxHistoryMessages: app.Config.Context.MaxHistoryMessages,
		RetryUnavailable:   app.Config.Ollama.RetryUnavailable,
	})

	healthHandler := handler.NewHealthHandler(app)
	sessionHandler := handler.NewSessionHandler(sessionService)
	documentHandler := handler.NewDocumentHandler(documentService)
	chatHandler := handler.NewChatHandler(chatService)

	router.GET("/healthz", healthHandler.Check)

	v1 := router.Group("/api/v1")
	v1.POST("/sessions", sessionHandler.CreateSession)
	v1.GET("/sessions", sessionHandler.ListSessions)
	v1.DELETE("/sessions/:id", sessionHandler.DeleteSession)
	v1.GET("/stats", sessionHandler.Stats)

	v1.POST("/sessions/:id/documents", documentHandler.Upload)
	v1.GET("/sessions/:id/documents", documentHandler.ListDocuments)
	v1.GET("/documents/:id/text", documentHandler.GetDocumentText)
	v1.DELETE("/documents/:id", documentHandler.DeleteDocument)

	v1.POST("/sessions/:id/ask", chatHandler.Ask)
	v1.GET("/sessions/:id/history", chatHandler.GetHistory)
	v1.DELETE("/sessions/:id/messages", chatHandler.ClearHistory)

	return router
}
