package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/money"
	"github.com/wealthwizard/finance-api/internal/repository"
)

const (
	chatTransactionWindow = 50
	chatMaxTokens         = 150
	chatTemperature       = 0.7
)

// LLMClient completes one chat turn.
type LLMClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ChatCompletionClient talks to an OpenAI-compatible /chat/completions
// endpoint.
type ChatCompletionClient struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewChatCompletionClient(url, apiKey, model string, timeout time.Duration) *ChatCompletionClient {
	return &ChatCompletionClient{
		url:    url,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *ChatCompletionClient) Complete(ctx context.Context, system, user string) (string, error) {
	bodyBytes, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling chat API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr chatErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty response from chat API")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// financialContext is what the assistant knows about the user.
type financialContext struct {
	userName          string
	totalTransactions int
	recent            []*model.Transaction
	activeGoals       []*model.Goal
	completedGoals    []*model.Goal
	topCategories     []lo.Entry[string, decimal.Decimal]
	monthIncome       decimal.Decimal
	monthExpenses     decimal.Decimal
	money             *money.Formatter
}

type ChatService struct {
	users  repository.UserRepository
	goals  repository.GoalRepository
	txRepo repository.TransactionRepository
	llm    LLMClient
	locale string
	now    func() time.Time
}

// NewChatService builds the assistant; llm may be nil to always answer
// with the rule-based responder.
func NewChatService(
	users repository.UserRepository,
	goals repository.GoalRepository,
	txRepo repository.TransactionRepository,
	llm LLMClient,
	locale string,
) *ChatService {
	return &ChatService{
		users:  users,
		goals:  goals,
		txRepo: txRepo,
		llm:    llm,
		locale: locale,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Reply answers a user's question using their recent activity. Model
// failures fall back to the rule-based answer.
func (s *ChatService) Reply(ctx context.Context, userID, message string) (string, error) {
	fc, err := s.buildContext(ctx, userID)
	if err != nil {
		return "", err
	}

	if s.llm != nil {
		reply, err := s.llm.Complete(ctx, systemPrompt(fc), message)
		if err == nil {
			return reply, nil
		}
		slog.Warn("chat model failed, using rule-based reply", "user_id", userID, "error", err)
	}

	return ruleBasedReply(message, fc), nil
}

func (s *ChatService) buildContext(ctx context.Context, userID string) (*financialContext, error) {
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	txs, _, err := s.txRepo.List(ctx, userID, repository.TransactionFilter{Limit: chatTransactionWindow})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	goals, err := s.goals.Goals(ctx, userID, repository.GoalFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load goals: %w", err)
	}

	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	thisMonth := lo.Filter(txs, func(t *model.Transaction, _ int) bool { return !t.Date.Before(monthStart) })

	expenses := lo.Filter(txs, func(t *model.Transaction, _ int) bool { return t.Type == model.TransactionTypeExpense })
	categories := lo.Entries(categoryTotals(expenses))
	categories = lo.Slice(sortEntriesDesc(categories), 0, topCategoryCount)

	return &financialContext{
		userName:          user.DisplayName(),
		totalTransactions: len(txs),
		recent:            lo.Slice(txs, 0, 10),
		activeGoals:       lo.Filter(goals, func(g *model.Goal, _ int) bool { return g.Status == model.GoalStatusActive }),
		completedGoals:    lo.Filter(goals, func(g *model.Goal, _ int) bool { return g.Status == model.GoalStatusCompleted }),
		topCategories:     categories,
		monthIncome:       sumByType(thisMonth, model.TransactionTypeIncome),
		monthExpenses:     sumByType(thisMonth, model.TransactionTypeExpense),
		money:             money.NewFormatter(s.locale, user.Currency),
	}, nil
}

func systemPrompt(fc *financialContext) string {
	var sb strings.Builder
	m := fc.money.Format

	fmt.Fprintf(&sb, "You are a helpful financial assistant for %s.\n\n", fc.userName)
	sb.WriteString("User's Financial Summary:\n")
	fmt.Fprintf(&sb, "- Total transactions: %d\n", fc.totalTransactions)
	fmt.Fprintf(&sb, "- Active goals: %d\n", len(fc.activeGoals))
	fmt.Fprintf(&sb, "- Completed goals: %d\n", len(fc.completedGoals))
	fmt.Fprintf(&sb, "- This month's income: %s\n", m(fc.monthIncome))
	fmt.Fprintf(&sb, "- This month's expenses: %s\n", m(fc.monthExpenses))
	fmt.Fprintf(&sb, "- Top spending categories: %s\n", strings.Join(lo.Map(fc.topCategories,
		func(e lo.Entry[string, decimal.Decimal], _ int) string { return e.Key + ": " + m(e.Value) }), ", "))

	sb.WriteString("\nRecent transactions:\n")
	for _, t := range lo.Slice(fc.recent, 0, 5) {
		fmt.Fprintf(&sb, "- %s: %s (%s) - %s\n", t.Description, m(t.Amount), t.Type, t.Category)
	}

	sb.WriteString("\nActive goals:\n")
	for _, g := range fc.activeGoals {
		fmt.Fprintf(&sb, "- %s: %s/%s (%.0f%%)\n", g.Title, m(g.CurrentAmount), m(g.TargetAmount), g.Progress())
	}

	sb.WriteString("\nProvide personalized, helpful financial advice based on this data. ")
	sb.WriteString("Be conversational, supportive, and specific to their situation. ")
	sb.WriteString("Keep responses concise (2-3 sentences max).")
	return sb.String()
}

func ruleBasedReply(message string, fc *financialContext) string {
	lower := strings.ToLower(message)
	m := fc.money.Format
	net := fc.monthIncome.Sub(fc.monthExpenses)

	switch {
	case strings.Contains(lower, "budget") || strings.Contains(lower, "spending"):
		if len(fc.topCategories) > 0 {
			top := fc.topCategories[0]
			return fmt.Sprintf("Hi %s! I see you've spent %s on %s recently. Consider setting a monthly budget for this category to better track your expenses.",
				fc.userName, m(top.Value), top.Key)
		}
		return fmt.Sprintf("Hi %s! Based on your transactions, I'd recommend creating category-wise budgets to better manage your spending.", fc.userName)

	case strings.Contains(lower, "save") || strings.Contains(lower, "goal"):
		if len(fc.activeGoals) > 0 {
			g := fc.activeGoals[0]
			focus := "spending"
			if len(fc.topCategories) > 0 {
				focus = fc.topCategories[0].Key
			}
			return fmt.Sprintf("Great question, %s! You're %.0f%% towards your %q goal. Based on your current income of %s, you could potentially save more by optimizing your %s.",
				fc.userName, g.Progress(), g.Title, m(fc.monthIncome), focus)
		}
		return fmt.Sprintf("Hi %s! I notice you don't have any active savings goals. Based on your income of %s, consider setting up an emergency fund goal first.",
			fc.userName, m(fc.monthIncome))

	case strings.Contains(lower, "expense") || strings.Contains(lower, "cost"):
		verdict := "Consider reviewing your expenses."
		if net.IsPositive() {
			verdict = "Great job staying positive!"
		}
		return fmt.Sprintf("This month you've spent %s against an income of %s, giving you a net of %s. %s",
			m(fc.monthExpenses), m(fc.monthIncome), m(net), verdict)

	case strings.Contains(lower, "income"):
		if fc.monthIncome.GreaterThan(fc.monthExpenses) {
			return fmt.Sprintf("Your income this month is %s. You're doing well with %s left after expenses!", m(fc.monthIncome), m(net))
		}
		return fmt.Sprintf("Your income this month is %s. Consider ways to increase income or reduce expenses.", m(fc.monthIncome))
	}

	return fmt.Sprintf("Hi %s! I can help you with your finances. You have %d transactions and %d active goals. Ask me about budgeting, savings, or your spending patterns!",
		fc.userName, fc.totalTransactions, len(fc.activeGoals))
}

func sumByType(txs []*model.Transaction, typ model.TransactionType) decimal.Decimal {
	return lo.Reduce(txs, func(sum decimal.Decimal, t *model.Transaction, _ int) decimal.Decimal {
		if t.Type != typ {
			return sum
		}
		return sum.Add(t.Amount)
	}, decimal.Zero)
}

func sortEntriesDesc(entries []lo.Entry[string, decimal.Decimal]) []lo.Entry[string, decimal.Decimal] {
	slices.SortFunc(entries, func(a, b lo.Entry[string, decimal.Decimal]) int {
		if c := b.Value.Cmp(a.Value); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return entries
}
