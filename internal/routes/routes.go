package routes

import (
	"net/http"
	"time"

	"github.com/wealthwizard/finance-api/internal/app"
	"github.com/wealthwizard/finance-api/internal/handler"
	"github.com/wealthwizard/finance-api/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService)
	settings := handler.NewSettingsHandler(app.UserService, app.NotificationService)
	goal := handler.NewGoalHandler(app.GoalService)
	transaction := handler.NewTransactionHandler(app.TransactionService)
	notification := handler.NewNotificationHandler(app.ReportService, app.GoalService)
	dashboard := handler.NewDashboardHandler(app.DashboardService)
	chat := handler.NewChatHandler(app.ChatService)
	insights := handler.NewInsightsHandler(app.InsightsService)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /api/health", handler.Health)

	// Auth (rate limited)
	rateLimiter := middleware.RateLimitAuth()
	mux.HandleFunc("POST /api/auth/register", rateLimiter(auth.Register))
	mux.HandleFunc("POST /api/auth/login", rateLimiter(auth.Login))

	// ============================================================================
	// PROTECTED ROUTES
	// ============================================================================

	mux.HandleFunc("GET /api/auth/me", middleware.RequireAuth(auth.Me))
	mux.HandleFunc("GET /api/dashboard", middleware.RequireAuth(dashboard.Summary))

	// Goals
	mux.HandleFunc("GET /api/goals", middleware.RequireAuth(goal.List))
	mux.HandleFunc("POST /api/goals", middleware.RequireAuth(goal.Create))
	mux.HandleFunc("POST /api/goals/process-auto-contributions", middleware.RequireAuth(goal.ProcessAutoContributions))
	mux.HandleFunc("GET /api/goals/{id}", middleware.RequireAuth(goal.Get))
	mux.HandleFunc("PUT /api/goals/{id}", middleware.RequireAuth(goal.Update))
	mux.HandleFunc("DELETE /api/goals/{id}", middleware.RequireAuth(goal.Delete))
	mux.HandleFunc("POST /api/goals/{id}/contribute", middleware.RequireAuth(goal.Contribute))
	mux.HandleFunc("POST /api/goals/{id}/withdraw", middleware.RequireAuth(goal.Withdraw))
	mux.HandleFunc("GET /api/goals/{id}/transactions", middleware.RequireAuth(goal.Entries))
	mux.HandleFunc("GET /api/goals/{id}/analytics", middleware.RequireAuth(goal.Analytics))
	mux.HandleFunc("PATCH /api/goals/{id}/auto-contribute", middleware.RequireAuth(goal.UpdateAutoContribute))
	mux.HandleFunc("POST /api/goals/{id}/status", middleware.RequireAuth(goal.SetStatus))

	// Transactions
	mux.HandleFunc("GET /api/transactions", middleware.RequireAuth(transaction.List))
	mux.HandleFunc("POST /api/transactions", middleware.RequireAuth(transaction.Create))
	mux.HandleFunc("GET /api/transactions/stats", middleware.RequireAuth(transaction.Stats))
	mux.HandleFunc("GET /api/transactions/spending-by-category", middleware.RequireAuth(transaction.SpendingByCategory))
	mux.HandleFunc("POST /api/transactions/detect-anomalies", middleware.RequireAuth(transaction.DetectAnomalies))
	mux.HandleFunc("GET /api/transactions/{id}", middleware.RequireAuth(transaction.Get))
	mux.HandleFunc("PUT /api/transactions/{id}/category", middleware.RequireAuth(transaction.UpdateCategory))

	// Insights
	mux.HandleFunc("GET /api/insights", middleware.RequireAuth(insights.Summary))
	mux.HandleFunc("GET /api/insights/predictions", middleware.RequireAuth(insights.Predictions))
	mux.HandleFunc("GET /api/insights/tips", middleware.RequireAuth(insights.Tips))
	mux.HandleFunc("GET /api/insights/trends", middleware.RequireAuth(insights.Trends))
	mux.HandleFunc("GET /api/insights/spending", middleware.RequireAuth(insights.Spending))
	mux.HandleFunc("GET /api/insights/categories", middleware.RequireAuth(insights.Categories))

	// Settings
	mux.HandleFunc("GET /api/settings/notifications", middleware.RequireAuth(settings.Notifications))
	mux.HandleFunc("PUT /api/settings/notifications", middleware.RequireAuth(settings.UpdateNotifications))
	mux.HandleFunc("GET /api/settings/privacy", middleware.RequireAuth(settings.Privacy))
	mux.HandleFunc("PUT /api/settings/privacy", middleware.RequireAuth(settings.UpdatePrivacy))
	mux.HandleFunc("POST /api/settings/push-subscription", middleware.RequireAuth(settings.SavePushSubscription))
	mux.HandleFunc("DELETE /api/settings/push-subscription", middleware.RequireAuth(settings.RemovePushSubscription))
	mux.HandleFunc("POST /api/settings/test-notification", middleware.RequireAuth(settings.TestNotification))

	// Notifications
	mux.HandleFunc("POST /api/notifications/send-insight", middleware.RequireAuth(notification.SendInsight))
	mux.HandleFunc("POST /api/notifications/report", middleware.RequireAuth(notification.Report))

	// AI chat
	mux.HandleFunc("POST /api/ai/chat", middleware.RequireAuth(middleware.RateLimitChat()(chat.Chat)))

	// ============================================================================
	// BATCH JOBS (external scheduler)
	// ============================================================================

	cron := middleware.RequireCronSecret(app.Cfg.CronSecret)
	mux.HandleFunc("POST /api/notifications/weekly-reports", cron(notification.WeeklyReports))
	mux.HandleFunc("POST /api/notifications/monthly-reports", cron(notification.MonthlyReports))
	mux.HandleFunc("POST /api/notifications/analyze-insights", cron(notification.AnalyzeInsights))
	mux.HandleFunc("POST /api/notifications/process-auto-contributions", cron(notification.ProcessAutoContributions))

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.SecurityHeaders,
		middleware.RequestLogging,
		middleware.APIRateLimit(middleware.NewRateLimiter(200, 5*time.Minute)),
		middleware.AuthMiddleware(app.AuthService, app.UserService),
	)

	return handler
}
