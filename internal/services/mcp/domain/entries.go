package domain

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/spliit-mcp/internal/groups"
)

const (
	// defaultEntriesLimit is the page size used when the caller omits one.
	defaultEntriesLimit = 20

	// maxEntriesLimit caps a single page.
	maxEntriesLimit = 100

	// summaryEntriesLimit bounds how many recent entries feed the balance
	// summary.
	summaryEntriesLimit = 100
)

// PayerInfo is the serialized form of an entry payer.
type PayerInfo struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"`
}

// ProfiteerInfo is the serialized form of an entry profiteer.
type ProfiteerInfo struct {
	UserID string  `json:"user_id"`
	Share  float64 `json:"share"`
}

// EntryInfo is the serialized form of a recorded expense entry.
type EntryInfo struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Amount       float64         `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
	Payers       []PayerInfo     `json:"payers"`
	Profiteers   []ProfiteerInfo `json:"profiteers"`
	CreatedAt    string          `json:"created_at,omitempty" jsonschema:"RFC 3339 creation time"`
}

func entryInfo(entry groups.Entry) EntryInfo {
	info := EntryInfo{
		ID:           entry.ID,
		Title:        entry.Title,
		Amount:       entry.Amount,
		CurrencyCode: entry.CurrencyCode,
		Payers:       make([]PayerInfo, 0, len(entry.Payers)),
		Profiteers:   make([]ProfiteerInfo, 0, len(entry.Profiteers)),
		CreatedAt:    formatTime(entry.CreatedAt),
	}
	for _, p := range entry.Payers {
		info.Payers = append(info.Payers, PayerInfo{UserID: p.MemberID, Amount: p.Amount})
	}
	for _, p := range entry.Profiteers {
		info.Profiteers = append(info.Profiteers, ProfiteerInfo{UserID: p.MemberID, Share: p.Share})
	}
	return info
}

func entryInfos(entries []groups.Entry) []EntryInfo {
	infos := make([]EntryInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, entryInfo(e))
	}
	return infos
}

// EntriesListInput is the MCP tool input for paging through group entries.
type EntriesListInput struct {
	GroupSelectorInput

	Offset int `json:"offset,omitempty"`
	Limit  int `json:"limit,omitempty"`
}

// EntriesListResult is the MCP tool output for paging through group entries.
type EntriesListResult struct {
	Group   GroupInfo   `json:"group" jsonschema:"resolved group"`
	Entries []EntryInfo `json:"entries" jsonschema:"entries, most recent first"`
}

// EntriesListTool defines the MCP tool schema for paging through group
// entries. The limit bounds live in the schema so out-of-range pages are
// rejected at the transport.
func EntriesListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_entries",
		Description: "Lists a group's expense entries, most recent first, with offset/limit paging.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"group_id":   {Type: "string", Description: "group identifier (takes precedence over group_code)"},
				"group_code": {Type: "string", Description: "group invite code or share URL"},
				"group_name": {Type: "string", Description: "group name (reserved, not supported yet)"},
				"offset":     {Type: "integer", Minimum: jsonPtr(0.0), Description: "entries to skip, defaults to 0"},
				"limit": {
					Type:        "integer",
					Minimum:     jsonPtr(1.0),
					Maximum:     jsonPtr(float64(maxEntriesLimit)),
					Description: "page size, defaults to 20",
				},
			},
		},
	}
}

// EntriesListHandler resolves the group and fetches one page of entries.
func EntriesListHandler(svc groups.Service) mcp.ToolHandlerFor[EntriesListInput, EntriesListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EntriesListInput) (*mcp.CallToolResult, EntriesListResult, error) {
		var zero EntriesListResult

		group, err := resolveGroup(ctx, svc, input.GroupSelectorInput)
		if err != nil {
			return nil, zero, fmt.Errorf("resolve group: %w", err)
		}

		limit := input.Limit
		if limit == 0 {
			limit = defaultEntriesLimit
		}

		entries, err := svc.ListEntries(ctx, group.ID, input.Offset, limit)
		if err != nil {
			return nil, zero, fmt.Errorf("list entries: %w", err)
		}
		return nil, EntriesListResult{Group: groupInfo(group), Entries: entryInfos(entries)}, nil
	}
}

// MemberBalanceInfo is the serialized per-member balance line.
type MemberBalanceInfo struct {
	UserID string  `json:"user_id"`
	Name   string  `json:"name,omitempty"`
	Paid   float64 `json:"paid"`
	Owed   float64 `json:"owed"`
	Net    float64 `json:"net" jsonschema:"paid minus owed; positive means the group owes this member"`
}

// GroupSummaryInput is the MCP tool input for the balance summary.
type GroupSummaryInput struct {
	GroupSelectorInput
}

// GroupSummaryResult is the MCP tool output for the balance summary.
type GroupSummaryResult struct {
	Group      GroupInfo           `json:"group" jsonschema:"resolved group"`
	TotalSpent float64             `json:"total_spent" jsonschema:"sum of recent entry amounts"`
	Members    []MemberBalanceInfo `json:"members" jsonschema:"per-member balances in snapshot order"`
}

// GroupSummaryTool defines the MCP tool schema for the balance summary.
func GroupSummaryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_group_summary",
		Description: "Computes per-member paid/owed/net balances over a group's recent entries.",
	}
}

// GroupSummaryHandler fetches the member snapshot and recent entries, then
// computes balances.
func GroupSummaryHandler(svc groups.Service) mcp.ToolHandlerFor[GroupSummaryInput, GroupSummaryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GroupSummaryInput) (*mcp.CallToolResult, GroupSummaryResult, error) {
		var zero GroupSummaryResult

		group, err := resolveGroup(ctx, svc, input.GroupSelectorInput)
		if err != nil {
			return nil, zero, fmt.Errorf("resolve group: %w", err)
		}
		members, err := svc.ListMembers(ctx, group.ID)
		if err != nil {
			return nil, zero, fmt.Errorf("list members: %w", err)
		}
		entries, err := svc.ListEntries(ctx, group.ID, 0, summaryEntriesLimit)
		if err != nil {
			return nil, zero, fmt.Errorf("list entries: %w", err)
		}
		summary, err := svc.Balance(ctx, group, members, entries)
		if err != nil {
			return nil, zero, fmt.Errorf("compute balance: %w", err)
		}

		result := GroupSummaryResult{
			Group:      groupInfo(group),
			TotalSpent: summary.TotalSpent,
			Members:    make([]MemberBalanceInfo, 0, len(summary.Members)),
		}
		for _, m := range summary.Members {
			result.Members = append(result.Members, MemberBalanceInfo{
				UserID: m.MemberID,
				Name:   m.Name,
				Paid:   m.Paid,
				Owed:   m.Owed,
				Net:    m.Net,
			})
		}
		return nil, result, nil
	}
}
