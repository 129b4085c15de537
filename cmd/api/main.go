package main

import (
	"log"
	"net/http"

	_ "bastportal/api/swagger" // swagger docs
	"bastportal/internal/config"
	"bastportal/internal/database"
	"bastportal/internal/handler"
	"bastportal/internal/middleware"
	"bastportal/internal/repository"
	"bastportal/internal/scheduler"
	"bastportal/internal/service"
	"bastportal/internal/storage"
	"bastportal/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           BAST Portal API
// @version         1.0
// @description     Vendor handover certificates (BAST), invoice tracking and SA/GR reconciliation.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	cfg := config.Load()
	if err := cfg.Validate(gin.Mode() == gin.ReleaseMode); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := database.NewConnection(cfg.DatabaseURL, database.Options{
		Debug:         cfg.DBDebug,
		RunMigrations: cfg.RunMigrations,
		MigrationsDir: cfg.MigrationsDir,
	})
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("File storage init failed: %v", err)
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	deps := service.Deps{
		Basts:        repository.NewBastRepository(db),
		Invoices:     repository.NewInvoiceRepository(db),
		Tracking:     repository.NewTrackingRepository(db),
		Audit:        repository.NewAuditRepository(db),
		Directory:    repository.NewUserRepository(db),
		Vendors:      repository.NewVendorRepository(db),
		InvoiceTypes: repository.NewInvoiceTypeRepository(db),
		TxManager:    repository.NewTransactionManager(db),
		Notifier:     wsHub,
	}
	bastService := service.NewBastService(deps)
	reconciliationService := service.NewReconciliationService(deps, cfg.SagrAutoFinalize)
	invoiceService := service.NewInvoiceService(deps)
	trackingService := service.NewTrackingService(deps.Basts, deps.Invoices, deps.Tracking)
	auditService := service.NewAuditService(deps.Audit)
	fileService := service.NewFileService(store, deps.Audit)

	reminders, err := scheduler.Start(cfg.ReminderSchedule, scheduler.NewReminderJob(invoiceService, wsHub))
	if err != nil {
		log.Fatalf("Scheduler init failed: %v", err)
	}
	if reminders != nil {
		defer reminders.Stop()
	}

	// Initialize Handlers
	secret := middleware.JWTSecret(cfg.JWTSecret)
	auth := middleware.NewAuth(secret)
	bastHandler := handler.NewBastHandler(bastService, reconciliationService, fileService, auth)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, auth)
	trackingHandler := handler.NewTrackingHandler(trackingService, auth)
	auditHandler := handler.NewAuditHandler(auditService, auth)
	fileHandler := handler.NewFileHandler(fileService, auth)

	// Set up Gin Router
	router := gin.Default()
	router.MaxMultipartMemory = handler.MaxUploadSize

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, secret)
	})

	// Files saved by the local store are served read-only.
	if local, ok := store.(*storage.LocalStore); ok {
		router.Static("/files", local.Dir())
	}

	// API Routing
	api := router.Group("")
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	bastHandler.RegisterRoutes(api)
	invoiceHandler.RegisterRoutes(api)
	trackingHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)
	fileHandler.RegisterRoutes(api)

	log.Printf("Server listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
