package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"couplespace/internal/config"
	"couplespace/internal/db"
	"couplespace/internal/handlers"
	"couplespace/internal/middleware"
	"couplespace/internal/observability"
	"couplespace/internal/rabbitmq"
	"couplespace/internal/repositories"
	"couplespace/internal/telemetry"
	"couplespace/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(context.Background(), "couplespace-devserver", cfg.Tracing.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown error: %v", err)
		}
	}()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	audit := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRoutingKey, "couplespace-devserver", cfg.Server.Environment)

	documentRepo := repositories.NewDocumentRepo(database)
	fileRepo := repositories.NewFileRepo(database)

	sessions := handlers.NewSessionRegistry()
	hub := ws.NewHub()

	authHandler := handlers.NewAuthHandler(sessions)
	documentHandler := handlers.NewDocumentHandler(documentRepo, hub, audit)
	objectHandler := handlers.NewObjectHandler(fileRepo, audit, cfg.Objects.SignKey, cfg.Objects.URLTTL)
	functionHandler := handlers.NewFunctionHandler(publisher, cfg.AMQP.PushRoutingKey)
	changesWS := ws.NewChangesHandler(hub, sessions)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("couplespace-devserver"))
	router.Use(observability.GinMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(sessions)

	router.POST("/v1/auth/anonymous", authHandler.SignInAnonymous)

	router.POST("/v1/collections/:collection/query", authMiddleware, documentHandler.QueryDocuments)
	router.POST("/v1/collections/:collection", authMiddleware, documentHandler.AddDocument)
	router.GET("/v1/collections/:collection/:id", authMiddleware, documentHandler.GetDocument)
	router.PATCH("/v1/collections/:collection/:id", authMiddleware, documentHandler.PatchDocument)
	router.DELETE("/v1/collections/:collection/:id", authMiddleware, documentHandler.DeleteDocument)

	router.POST("/v1/objects", authMiddleware, objectHandler.Upload)
	router.POST("/v1/objects/resolve", authMiddleware, objectHandler.Resolve)
	router.GET("/v1/objects/:file_id/content", objectHandler.Content)

	router.POST("/v1/functions/:name", authMiddleware, functionHandler.Call)

	router.GET("/v1/changes", changesWS.Handle)

	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
