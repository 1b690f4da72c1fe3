package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/wealthwizard/finance-api/internal/config"
	"github.com/wealthwizard/finance-api/internal/db"
	"github.com/wealthwizard/finance-api/internal/markdown"
	"github.com/wealthwizard/finance-api/internal/repository"
	"github.com/wealthwizard/finance-api/internal/service"
	"github.com/wealthwizard/finance-api/internal/storage"
)

type App struct {
	Cfg                 *config.Config
	DB                  *sqlx.DB
	Queue               *service.AsyncQueue
	AuthService         *service.AuthService
	UserService         *service.UserService
	GoalService         *service.GoalService
	TransactionService  *service.TransactionService
	NotificationService *service.NotificationService
	ReportService       *service.ReportService
	DashboardService    *service.DashboardService
	ChatService         *service.ChatService
	InsightsService     *service.InsightsService
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Amounts are sent as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)
	goalRepository := repository.NewGoalRepository(database)
	goalEntryRepository := repository.NewGoalEntryRepository(database)
	transactionRepository := repository.NewTransactionRepository(database)

	// Storage
	archive, err := storage.New(ctx, cfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}

	// Notifications
	templates, err := service.NewTemplates(markdown.NewParser(), cfg.CurrencyLocale, cfg.AppName, cfg.AppURL)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load notification templates: %v", err)
	}
	emailService := service.NewEmailService(cfg.ResendAPIKey, cfg.EmailFrom, cfg.IsDevelopment())
	pushService := service.NewPushService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject, cfg.IsDevelopment())
	notificationService := service.NewNotificationService(userRepository, templates, emailService, pushService)
	queue := service.NewAsyncQueue(notificationService, cfg.NotifyQueueSize, cfg.NotifyWorkers)

	// AI chat
	var llm service.LLMClient
	if cfg.LLMEnabled() {
		llm = service.NewChatCompletionClient(cfg.LLMAPIURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	}

	// Services
	authService := service.NewAuthService(userRepository, notificationService, cfg.JWTSecret, cfg.JWTExpiry)
	userService := service.NewUserService(userRepository)
	goalService := service.NewGoalService(goalRepository, goalEntryRepository, queue)
	transactionService := service.NewTransactionService(transactionRepository)
	reportService := service.NewReportService(userRepository, transactionRepository, queue, templates, archive)
	dashboardService := service.NewDashboardService(goalRepository, goalEntryRepository, transactionRepository)
	chatService := service.NewChatService(userRepository, goalRepository, transactionRepository, llm, cfg.CurrencyLocale)
	insightsService := service.NewInsightsService(userRepository, goalRepository, transactionRepository, cfg.CurrencyLocale)

	return &App{
		Cfg:                 cfg,
		DB:                  database,
		Queue:               queue,
		AuthService:         authService,
		UserService:         userService,
		GoalService:         goalService,
		TransactionService:  transactionService,
		NotificationService: notificationService,
		ReportService:       reportService,
		DashboardService:    dashboardService,
		ChatService:         chatService,
		InsightsService:     insightsService,
	}, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
