package handler

import (
	"net/http"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/wealthwizard/finance-api/internal/ctxkeys"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/repository"
	"github.com/wealthwizard/finance-api/internal/service"
	"github.com/wealthwizard/finance-api/internal/validation"
)

type GoalHandler struct {
	goalService *service.GoalService
}

func NewGoalHandler(goalService *service.GoalService) *GoalHandler {
	return &GoalHandler{
		goalService: goalService,
	}
}

type goalRequest struct {
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	TargetAmount   decimal.Decimal       `json:"targetAmount"`
	TargetDate     string                `json:"targetDate"`
	Category       model.GoalCategory    `json:"category"`
	Priority       model.GoalPriority    `json:"priority"`
	Milestones     []milestoneRequest    `json:"milestones"`
	AutoContribute *model.AutoContribute `json:"autoContribute"`
}

type milestoneRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (req goalRequest) input() (service.GoalInput, error) {
	in := service.GoalInput{
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		TargetAmount: req.TargetAmount,
		Category:     req.Category,
		Priority:     req.Priority,
		Milestones: lo.Map(req.Milestones, func(m milestoneRequest, _ int) decimal.Decimal {
			return m.Amount
		}),
	}
	if req.AutoContribute != nil {
		in.AutoContribute = *req.AutoContribute
	}

	if req.TargetDate != "" {
		date, err := parseDate(req.TargetDate)
		if err != nil {
			return in, &validation.Error{Field: "targetDate", Message: "Target date must be a valid date"}
		}
		in.TargetDate = date
	}

	return in, nil
}

type entryRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	filter := repository.GoalFilter{
		Status: model.GoalStatus(r.URL.Query().Get("status")),
		SortBy: r.URL.Query().Get("sort"),
	}
	if filter.SortBy == "" {
		filter.SortBy = repository.GoalSortRecent
	}

	goals, err := h.goalService.Goals(r.Context(), user.ID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, goals)
}

func (h *GoalHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	goal, err := h.goalService.ByID(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req goalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}

	goal, err := h.goalService.Create(r.Context(), user.ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, goal)
}

func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req goalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}

	// An update without a policy keeps the stored one.
	if req.AutoContribute == nil {
		current, err := h.goalService.ByID(r.Context(), user.ID, r.PathValue("id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		in.AutoContribute = current.AutoContribute
	}

	goal, err := h.goalService.Update(r.Context(), user.ID, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.goalService.Delete(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "Goal deleted successfully")
}

func (h *GoalHandler) Contribute(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	goal, err := h.goalService.Contribute(r.Context(), user.ID, r.PathValue("id"), req.Amount, strings.TrimSpace(req.Description))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	goal, err := h.goalService.Withdraw(r.Context(), user.ID, r.PathValue("id"), req.Amount, strings.TrimSpace(req.Description))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) Entries(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	entries, err := h.goalService.Entries(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *GoalHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	analytics, err := h.goalService.Analytics(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, analytics)
}

func (h *GoalHandler) UpdateAutoContribute(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var policy model.AutoContribute
	if !decodeJSON(w, r, &policy) {
		return
	}

	goal, err := h.goalService.UpdateAutoContribute(r.Context(), user.ID, r.PathValue("id"), policy)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req struct {
		Status model.GoalStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	goal, err := h.goalService.SetStatus(r.Context(), user.ID, r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, goal)
}

// ProcessAutoContributions runs the auto-contribution pass for the caller.
func (h *GoalHandler) ProcessAutoContributions(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	summary, err := h.goalService.ProcessAutoContributions(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
