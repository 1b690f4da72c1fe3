package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wealthwizard/finance-api/internal/ctxkeys"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/repository"
	"github.com/wealthwizard/finance-api/internal/service"
	"github.com/wealthwizard/finance-api/internal/validation"
)

type TransactionHandler struct {
	transactionService *service.TransactionService
}

func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	q := r.URL.Query()

	start, end, err := dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := h.transactionService.List(r.Context(), user.ID, repository.TransactionFilter{
		Category: q.Get("category"),
		Type:     model.TransactionType(q.Get("type")),
		Start:    start,
		End:      end,
		Limit:    limit,
	}, page)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	t, err := h.transactionService.ByID(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req struct {
		Amount      decimal.Decimal       `json:"amount"`
		Description string                `json:"description"`
		Category    string                `json:"category"`
		Type        model.TransactionType `json:"type"`
		Date        string                `json:"date"`
		Merchant    string                `json:"merchant"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	in := service.TransactionInput{
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
		Type:        req.Type,
		Merchant:    req.Merchant,
	}
	if req.Date != "" {
		date, err := parseDate(req.Date)
		if err != nil {
			writeError(w, r, &validation.Error{Field: "date", Message: "Date must be a valid date"})
			return
		}
		in.Date = date
	}

	t, err := h.transactionService.Create(r.Context(), user.ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, t)
}

func (h *TransactionHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req struct {
		Category       string `json:"category"`
		CategoryDetail string `json:"categoryDetail"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.transactionService.UpdateCategory(r.Context(), user.ID, r.PathValue("id"), req.Category, req.CategoryDetail)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (h *TransactionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	start, end, err := dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := h.transactionService.Stats(r.Context(), user.ID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *TransactionHandler) SpendingByCategory(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	start, end, err := dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	totals, err := h.transactionService.SpendingByCategory(r.Context(), user.ID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, totals)
}

func (h *TransactionHandler) DetectAnomalies(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	count, err := h.transactionService.DetectAnomalies(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		AnomaliesDetected int `json:"anomaliesDetected"`
	}{count})
}

// dateRange reads the optional startDate/endDate query parameters. A bare
// end date covers the whole day.
func dateRange(r *http.Request) (*time.Time, *time.Time, error) {
	var start, end *time.Time

	if v := r.URL.Query().Get("startDate"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return nil, nil, &validation.Error{Field: "startDate", Message: "startDate must be a valid date"}
		}
		start = &t
	}

	if v := r.URL.Query().Get("endDate"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return nil, nil, &validation.Error{Field: "endDate", Message: "endDate must be a valid date"}
		}
		if len(v) == len(time.DateOnly) {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		end = &t
	}

	return start, end, nil
}
