package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/wealthwizard/finance-api/internal/ctxkeys"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/service"
	"github.com/wealthwizard/finance-api/internal/validation"
)

type NotificationHandler struct {
	reportService *service.ReportService
	goalService   *service.GoalService
}

func NewNotificationHandler(reportService *service.ReportService, goalService *service.GoalService) *NotificationHandler {
	return &NotificationHandler{
		reportService: reportService,
		goalService:   goalService,
	}
}

func (h *NotificationHandler) WeeklyReports(w http.ResponseWriter, r *http.Request) {
	h.periodicReports(w, r, model.ReportWeekly)
}

func (h *NotificationHandler) MonthlyReports(w http.ResponseWriter, r *http.Request) {
	h.periodicReports(w, r, model.ReportMonthly)
}

func (h *NotificationHandler) periodicReports(w http.ResponseWriter, r *http.Request, period model.ReportPeriod) {
	result, err := h.reportService.SendPeriodicReports(r.Context(), period)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, batchResponse{Message: string(period) + " reports processed", BatchResult: result})
}

func (h *NotificationHandler) AnalyzeInsights(w http.ResponseWriter, r *http.Request) {
	result, err := h.reportService.AnalyzeAllInsights(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, batchResponse{Message: "Insights analysis completed", BatchResult: result})
}

// ProcessAutoContributions runs the auto-contribution pass for every user
// with an enabled policy.
func (h *NotificationHandler) ProcessAutoContributions(w http.ResponseWriter, r *http.Request) {
	result, err := h.goalService.ProcessAllAutoContributions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, batchResponse{Message: "Auto-contributions processed", BatchResult: result})
}

type batchResponse struct {
	Message string `json:"message"`
	*service.BatchResult
}

// Report builds and queues the current user's weekly or monthly report.
func (h *NotificationHandler) Report(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req struct {
		Period model.ReportPeriod `json:"period"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Period.Valid() {
		writeError(w, r, &validation.Error{Field: "period", Message: "period must be weekly or monthly"})
		return
	}

	result, err := h.reportService.PeriodicReport(r.Context(), user.ID, req.Period)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type insightRequest struct {
	Type model.EventKind `json:"type"`
	Data json.RawMessage `json:"data"`
}

type spendingAlertData struct {
	Category           string          `json:"category"`
	Increase           decimal.Decimal `json:"increase"`
	CurrentAmount      decimal.Decimal `json:"currentAmount"`
	PreviousAmount     decimal.Decimal `json:"previousAmount"`
	PercentageIncrease float64         `json:"percentageIncrease"`
	Suggestion         string          `json:"suggestion"`
}

type budgetExceededData struct {
	BudgetLimit     decimal.Decimal `json:"budgetLimit"`
	CurrentSpending decimal.Decimal `json:"currentSpending"`
	ExceededAmount  decimal.Decimal `json:"exceededAmount"`
}

type savingsOpportunityData struct {
	Category         string          `json:"category"`
	CurrentSpending  decimal.Decimal `json:"currentSpending"`
	PotentialSavings decimal.Decimal `json:"potentialSavings"`
	OptimizationRate int             `json:"optimizationRate"`
	Suggestion       string          `json:"suggestion"`
}

func (req insightRequest) event() (model.Event, error) {
	invalid := &validation.Error{Field: "data", Message: "Invalid insight data"}
	data := req.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	switch req.Type {
	case model.EventSpendingAlert:
		var d spendingAlertData
		if json.Unmarshal(data, &d) != nil {
			return nil, invalid
		}
		return model.SpendingAlertEvent(d), nil
	case model.EventBudgetExceeded:
		var d budgetExceededData
		if json.Unmarshal(data, &d) != nil {
			return nil, invalid
		}
		return model.BudgetExceededEvent(d), nil
	case model.EventSavingsOpportunity:
		var d savingsOpportunityData
		if json.Unmarshal(data, &d) != nil {
			return nil, invalid
		}
		return model.SavingsOpportunityEvent(d), nil
	}

	return nil, &validation.Error{Field: "type", Message: "Unknown insight type"}
}

func (h *NotificationHandler) SendInsight(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req insightRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ev, err := req.event()
	if err != nil {
		writeError(w, r, err)
		return
	}

	err = h.reportService.SendInsight(r.Context(), user.ID, ev)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "Insight notification sent successfully")
}
