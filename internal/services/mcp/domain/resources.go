package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/spliit-mcp/internal/groups"
)

// MemberListPayload represents the MCP resource payload for member listings.
type MemberListPayload struct {
	Group   GroupInfo    `json:"group"`
	Members []MemberInfo `json:"members"`
}

// MemberListResourceTemplate defines the MCP resource template for member
// listings.
func MemberListResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "member_list",
		Title:       "Group members",
		Description: "Readable listing of a group's members. URI format: group://{group_id}/members",
		MIMEType:    "application/json",
		URITemplate: "group://{group_id}/members",
	}
}

// MemberListResourceHandler returns a readable member listing resource.
func MemberListResourceHandler(svc groups.Service) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri, groupID, err := groupIDFromResourceURI(req, "members")
		if err != nil {
			return nil, err
		}

		group, err := svc.ResolveGroup(ctx, groups.Selector{GroupID: groupID})
		if err != nil {
			return nil, fmt.Errorf("resolve group: %w", err)
		}
		members, err := svc.ListMembers(ctx, group.ID)
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}

		payload := MemberListPayload{
			Group:   groupInfo(group),
			Members: memberInfos(members),
		}
		return jsonResource(uri, payload)
	}
}

// EntryListPayload represents the MCP resource payload for entry listings.
type EntryListPayload struct {
	Group   GroupInfo   `json:"group"`
	Entries []EntryInfo `json:"entries"`
}

// EntryListResourceTemplate defines the MCP resource template for entry
// listings.
func EntryListResourceTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		Name:        "entry_list",
		Title:       "Group entries",
		Description: "Readable listing of a group's most recent expense entries. URI format: group://{group_id}/entries",
		MIMEType:    "application/json",
		URITemplate: "group://{group_id}/entries",
	}
}

// EntryListResourceHandler returns a readable entry listing resource.
func EntryListResourceHandler(svc groups.Service) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri, groupID, err := groupIDFromResourceURI(req, "entries")
		if err != nil {
			return nil, err
		}

		group, err := svc.ResolveGroup(ctx, groups.Selector{GroupID: groupID})
		if err != nil {
			return nil, fmt.Errorf("resolve group: %w", err)
		}
		entries, err := svc.ListEntries(ctx, group.ID, 0, defaultEntriesLimit)
		if err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}

		payload := EntryListPayload{
			Group:   groupInfo(group),
			Entries: entryInfos(entries),
		}
		return jsonResource(uri, payload)
	}
}

// groupIDFromResourceURI extracts the group identifier from a
// group://{group_id}/{suffix} resource URI.
func groupIDFromResourceURI(req *mcp.ReadResourceRequest, suffix string) (uri, groupID string, err error) {
	if req == nil || req.Params == nil || req.Params.URI == "" {
		return "", "", fmt.Errorf("group ID is required; use URI format group://{group_id}/%s", suffix)
	}
	uri = req.Params.URI

	rest, ok := strings.CutPrefix(uri, "group://")
	if !ok {
		return "", "", fmt.Errorf("unexpected resource URI %q; use URI format group://{group_id}/%s", uri, suffix)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != suffix {
		return "", "", fmt.Errorf("unexpected resource URI %q; use URI format group://{group_id}/%s", uri, suffix)
	}
	return uri, parts[0], nil
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal resource payload: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
