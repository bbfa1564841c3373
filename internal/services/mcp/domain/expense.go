package domain

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/spliit-mcp/internal/groups"
)

const (
	// defaultCurrency applies when neither the input nor the group carries a
	// currency code.
	defaultCurrency = "EUR"

	// shareSumEpsilon bounds the accepted drift of the profiteer share sum
	// from 1. Shares travel as floats and accumulate rounding error.
	shareSumEpsilon = 1e-6
)

// PayerInput names a member who paid part of an expense. Exactly one of
// user_id or name must be set; name is resolved case-insensitively against
// the group's members.
type PayerInput struct {
	UserID string  `json:"user_id,omitempty"`
	Name   string  `json:"name,omitempty"`
	Amount float64 `json:"amount"`
}

// ProfiteerInput names a member who benefits from an expense, with the
// fraction of the total they owe.
type ProfiteerInput struct {
	UserID string  `json:"user_id,omitempty"`
	Name   string  `json:"name,omitempty"`
	Share  float64 `json:"share"`
}

// ExpenseCreateInput is the MCP tool input for recording an expense.
type ExpenseCreateInput struct {
	GroupSelectorInput

	Title        string           `json:"title"`
	Amount       float64          `json:"amount"`
	CurrencyCode string           `json:"currency_code,omitempty"`
	Payers       []PayerInput     `json:"payers"`
	Profiteers   []ProfiteerInput `json:"profiteers"`
}

// ExpenseCreateResult is the MCP tool output for recording an expense.
type ExpenseCreateResult struct {
	Entry EntryInfo `json:"entry" jsonschema:"the recorded expense entry"`
}

// ExpenseCreateTool defines the MCP tool schema for recording an expense.
// The schema is written out by hand: payers and profiteers carry an anyOf
// constraint (user_id or name) and numeric bounds that the generated schema
// cannot express, and the transport rejects violations before the handler
// runs.
func ExpenseCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "create_expense",
		Description: "Records a shared expense in a group. Members may be addressed by user_id or by display name; profiteer shares are fractions of the total and must sum to 1.",
		InputSchema: expenseCreateSchema(),
	}
}

func expenseCreateSchema() *jsonschema.Schema {
	positive := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{
			Type:             "number",
			ExclusiveMinimum: jsonPtr(0.0),
			Description:      desc,
		}
	}

	party := func(valueField string, value *jsonschema.Schema) *jsonschema.Schema {
		return &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"user_id": {Type: "string", Description: "stable member identifier"},
				"name":    {Type: "string", Description: "member display name, resolved case-insensitively"},
				valueField: value,
			},
			Required: []string{valueField},
			AnyOf: []*jsonschema.Schema{
				{Required: []string{"user_id"}},
				{Required: []string{"name"}},
			},
		}
	}

	share := &jsonschema.Schema{
		Type:             "number",
		ExclusiveMinimum: jsonPtr(0.0),
		Maximum:          jsonPtr(1.0),
		Description:      "fraction of the total this member owes",
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"group_id":      {Type: "string", Description: "group identifier (takes precedence over group_code)"},
			"group_code":    {Type: "string", Description: "group invite code or share URL"},
			"group_name":    {Type: "string", Description: "group name (reserved, not supported yet)"},
			"title":         {Type: "string", Description: "short human-readable label"},
			"amount":        positive("total expense amount in major currency units"),
			"currency_code": {Type: "string", Description: "ISO 4217 code; defaults to the group currency"},
			"payers": {
				Type:        "array",
				MinItems:    jsonPtr(1),
				Items:       party("amount", positive("amount this member paid")),
				Description: "who paid, and how much each",
			},
			"profiteers": {
				Type:        "array",
				MinItems:    jsonPtr(1),
				Items:       party("share", share),
				Description: "who benefits, with shares summing to 1",
			},
		},
		Required: []string{"title", "amount", "payers", "profiteers"},
	}
}

func jsonPtr[T any](v T) *T { return &v }

// ExpenseCreateHandler validates and records an expense.
//
// Validation failures the caller can repair (share sum drift, unknown member
// names) come back as tool-level errors so the session survives; backend
// failures propagate as handler errors.
func ExpenseCreateHandler(svc groups.Service) mcp.ToolHandlerFor[ExpenseCreateInput, ExpenseCreateResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ExpenseCreateInput) (*mcp.CallToolResult, ExpenseCreateResult, error) {
		var zero ExpenseCreateResult

		group, err := resolveGroup(ctx, svc, input.GroupSelectorInput)
		if err != nil {
			return nil, zero, fmt.Errorf("resolve group: %w", err)
		}

		currency := input.CurrencyCode
		if currency == "" {
			currency = group.CurrencyCode
		}
		if currency == "" {
			currency = defaultCurrency
		}

		var sum float64
		for _, p := range input.Profiteers {
			sum += p.Share
		}
		if math.Abs(sum-1) > shareSumEpsilon {
			return toolError("profiteer shares must sum to 1, got %v", sum), zero, nil
		}

		names := pendingNames(input.Payers, input.Profiteers)
		var resolved map[string]string
		if len(names) > 0 {
			resolved, err = ResolveNames(ctx, svc, group.ID, names)
			var unknown *UnknownMemberNameError
			if errors.As(err, &unknown) {
				return toolError("%v", unknown), zero, nil
			}
			if err != nil {
				return nil, zero, err
			}
		}

		expense := groups.Expense{
			GroupID:      group.ID,
			Title:        input.Title,
			Amount:       input.Amount,
			CurrencyCode: currency,
		}
		for _, p := range input.Payers {
			id := memberID(p.UserID, p.Name, resolved)
			if id == "" {
				return toolError("payer needs a user_id or a name"), zero, nil
			}
			expense.Payers = append(expense.Payers, groups.Payer{MemberID: id, Amount: p.Amount})
		}
		for _, p := range input.Profiteers {
			id := memberID(p.UserID, p.Name, resolved)
			if id == "" {
				return toolError("profiteer needs a user_id or a name"), zero, nil
			}
			expense.Profiteers = append(expense.Profiteers, groups.Profiteer{MemberID: id, Share: p.Share})
		}

		entry, err := svc.CreateExpense(ctx, expense)
		if err != nil {
			return nil, zero, fmt.Errorf("create expense: %w", err)
		}
		return nil, ExpenseCreateResult{Entry: entryInfo(entry)}, nil
	}
}

// pendingNames collects the display names that still need resolution,
// deduplicated in first-seen order. Parties carrying a user_id skip
// resolution entirely.
func pendingNames(payers []PayerInput, profiteers []ProfiteerInput) []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(userID, name string) {
		if userID != "" || name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for _, p := range payers {
		add(p.UserID, p.Name)
	}
	for _, p := range profiteers {
		add(p.UserID, p.Name)
	}
	return names
}

func memberID(userID, name string, resolved map[string]string) string {
	if userID != "" {
		return userID
	}
	return resolved[name]
}

// toolError builds a recoverable tool-level error result. The caller can fix
// the input and retry on the same session.
func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}
