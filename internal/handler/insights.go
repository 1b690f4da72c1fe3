package handler

import (
	"net/http"

	"github.com/wealthwizard/finance-api/internal/ctxkeys"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/service"
	"github.com/wealthwizard/finance-api/internal/validation"
)

type InsightsHandler struct {
	insightsService *service.InsightsService
}

func NewInsightsHandler(insightsService *service.InsightsService) *InsightsHandler {
	return &InsightsHandler{
		insightsService: insightsService,
	}
}

func (h *InsightsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	period, ok := queryPeriod(w, r)
	if !ok {
		return
	}

	summary, err := h.insightsService.Summary(r.Context(), user.ID, period)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *InsightsHandler) Predictions(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	prediction, err := h.insightsService.Predictions(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, prediction)
}

func (h *InsightsHandler) Tips(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	tips, err := h.insightsService.Tips(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tips)
}

func (h *InsightsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	period, ok := queryPeriod(w, r)
	if !ok {
		return
	}

	trends, err := h.insightsService.Trends(r.Context(), user.ID, period, r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, trends)
}

func (h *InsightsHandler) Spending(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	insights, err := h.insightsService.Spending(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, insights)
}

func (h *InsightsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	start, end, err := dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	categories, err := h.insightsService.Categories(r.Context(), user.ID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, categories)
}

// queryPeriod reads ?period=, defaulting to monthly.
func queryPeriod(w http.ResponseWriter, r *http.Request) (model.ReportPeriod, bool) {
	period := model.ReportPeriod(r.URL.Query().Get("period"))
	if period == "" {
		return model.ReportMonthly, true
	}
	if !period.Valid() {
		writeError(w, r, &validation.Error{Field: "period", Message: "period must be weekly or monthly"})
		return "", false
	}
	return period, true
}
