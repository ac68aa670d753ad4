package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httpHdlr "knowra/handler/http"
	"knowra/src/core/agent"
	"knowra/src/infrastructure/job"
	"knowra/src/infrastructure/log"
	"knowra/src/storage/minioctrl"
	"knowra/src/storage/postgres/documentctrl"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the knowledge service HTTP server",
	Long:  `The serve command starts an HTTP server exposing document upload and question answering.`,
	Run:   RunServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	settingDefaultConfig()
}

func RunServer(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	db, err := openDatabase()
	if err != nil {
		log.Error(err, "Failed to connect to database")
		return
	}

	documentService, err := documentctrl.NewDocumentService(db)
	if err != nil {
		log.Error(err, "Failed to initialize document service")
		return
	}

	minioService, err := minioctrl.NewMinioService(
		viper.GetString("minio.endpoint"),
		viper.GetString("minio.access_key"),
		viper.GetString("minio.secret_key"),
		viper.GetBool("minio.use_ssl"),
	)
	if err != nil {
		log.Error(err, "Failed to initialize minio service")
		return
	}

	oc := newOllamaClient()

	index := newWeaviateIndex()
	if err := index.EnsureClass(ctx); err != nil {
		log.Error(err, "Failed to ensure index class")
		return
	}

	pipeline, err := newPipeline(oc, index)
	if err != nil {
		log.Error(err, "Failed to build ingestion pipeline")
		return
	}

	amqpPublisher, err := amqp.NewPublisher(
		amqp.NewDurableQueueConfig(viper.GetString("amqp.url")),
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		log.Error(err, "Failed to create AMQP publisher")
		return
	}
	defer amqpPublisher.Close()

	ingestTask := job.NewIngestTask(documentService, minioService, pipeline)
	jobRepo := job.NewPostgresJobRepository(db)
	jobService := job.NewJobService(amqpPublisher, jobRepo, watermill.NewStdLogger(false, false), ingestTask)

	ragAgent := agent.New(oc, index, oc, newAgentConfig())

	documentHandler, err := httpHdlr.NewDocumentHandler(
		minioService,
		viper.GetString("minio.document_bucket"),
		documentService,
		jobService,
		index,
	)
	if err != nil {
		log.Error(err, "Failed to initialize document handler")
		return
	}
	knowledgeHandler := httpHdlr.NewKnowledgeHandler(ragAgent, index, oc)

	// Setup gin router
	r := gin.Default()

	// Register routes
	r.GET("/healthz", knowledgeHandler.Health)
	v1 := r.Group("/api/v1")
	{
		v1.POST("/documents", documentHandler.Upload)
		v1.GET("/documents", documentHandler.List)
		v1.DELETE("/documents/:id", documentHandler.Delete)

		v1.POST("/ask", knowledgeHandler.Ask)
		v1.GET("/history", knowledgeHandler.History)
		v1.DELETE("/history", knowledgeHandler.ClearHistory)
		v1.GET("/stats", knowledgeHandler.Stats)
		v1.DELETE("/index", knowledgeHandler.ClearIndex)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + viper.GetString("server.port"),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "Failed to start server")
			return
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Parse shutdown timeout
	timeout, err := time.ParseDuration(viper.GetString("server.shutdown_timeout"))
	if err != nil {
		log.Error(err, "Invalid shutdown timeout, using default 5s")
		timeout = 5 * time.Second
	}

	// Create context with timeout for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Get underlying *sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		log.Error(err, "Failed to get underlying *sql.DB")
	} else {
		// Close database connection
		if err := sqlDB.Close(); err != nil {
			log.Error(err, "Error closing database connection")
		}
	}

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Server forced to shutdown")
	}

	log.Info("Server exited")
}
