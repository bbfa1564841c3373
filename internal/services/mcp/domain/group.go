package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/spliit-mcp/internal/groups"
)

// GroupSelectorInput is the caller-supplied group addressing shared by every
// group-scoped tool. All fields are optional; when none is set the configured
// default group is used. group_id wins over group_code; group_name is
// reserved and always fails.
type GroupSelectorInput struct {
	GroupID   string `json:"group_id,omitempty" jsonschema:"group identifier (takes precedence over group_code)"`
	GroupCode string `json:"group_code,omitempty" jsonschema:"group invite code or share URL"`
	GroupName string `json:"group_name,omitempty" jsonschema:"group name (reserved, not supported yet)"`
}

// resolveGroup applies the shared group resolution policy. The default group
// is re-resolved per call so upstream currency changes are observed.
func resolveGroup(ctx context.Context, svc groups.Service, sel GroupSelectorInput) (groups.GroupRef, error) {
	if sel.GroupID == "" && sel.GroupCode == "" && sel.GroupName == "" {
		return svc.DefaultGroup(ctx)
	}
	return svc.ResolveGroup(ctx, groups.Selector{
		GroupID:   sel.GroupID,
		GroupCode: sel.GroupCode,
		GroupName: sel.GroupName,
	})
}

// GroupInfo is the serialized form of a resolved group.
type GroupInfo struct {
	ID           string `json:"id" jsonschema:"group identifier"`
	Name         string `json:"name,omitempty" jsonschema:"group name"`
	CurrencyCode string `json:"currency_code,omitempty" jsonschema:"group default currency code"`
}

// MemberInfo is the serialized form of a group member.
type MemberInfo struct {
	ID   string `json:"id" jsonschema:"stable member identifier"`
	Name string `json:"name" jsonschema:"member display name"`
}

func groupInfo(group groups.GroupRef) GroupInfo {
	return GroupInfo{ID: group.ID, Name: group.Name, CurrencyCode: group.CurrencyCode}
}

func memberInfos(members []groups.Member) []MemberInfo {
	infos := make([]MemberInfo, 0, len(members))
	for _, m := range members {
		infos = append(infos, MemberInfo{ID: m.ID, Name: m.Name})
	}
	return infos
}

// HealthInput is the (empty) MCP tool input for the liveness check.
type HealthInput struct{}

// HealthResult is the MCP tool output for the liveness check.
type HealthResult struct {
	OK bool `json:"ok" jsonschema:"always true while the server is serving"`
}

// HealthTool defines the MCP tool schema for the liveness check.
func HealthTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "health",
		Description: "Static liveness check. Returns {ok: true} and never fails.",
	}
}

// HealthHandler executes the liveness check.
func HealthHandler() mcp.ToolHandlerFor[HealthInput, HealthResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, _ HealthInput) (*mcp.CallToolResult, HealthResult, error) {
		return nil, HealthResult{OK: true}, nil
	}
}

// WhoamiInput is the MCP tool input for the group identity lookup.
type WhoamiInput struct {
	GroupSelectorInput
}

// WhoamiResult is the MCP tool output for the group identity lookup.
type WhoamiResult struct {
	Group   GroupInfo    `json:"group" jsonschema:"resolved group"`
	Members []MemberInfo `json:"members" jsonschema:"current member snapshot"`
}

// WhoamiTool defines the MCP tool schema for the group identity lookup.
func WhoamiTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "whoami",
		Description: "Resolves the configured default group (or an explicit selector) and lists its members.",
	}
}

// WhoamiHandler resolves the group and fetches a fresh member snapshot.
func WhoamiHandler(svc groups.Service) mcp.ToolHandlerFor[WhoamiInput, WhoamiResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input WhoamiInput) (*mcp.CallToolResult, WhoamiResult, error) {
		group, err := resolveGroup(ctx, svc, input.GroupSelectorInput)
		if err != nil {
			return nil, WhoamiResult{}, fmt.Errorf("resolve group: %w", err)
		}
		members, err := svc.ListMembers(ctx, group.ID)
		if err != nil {
			return nil, WhoamiResult{}, fmt.Errorf("list members: %w", err)
		}
		return nil, WhoamiResult{Group: groupInfo(group), Members: memberInfos(members)}, nil
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
