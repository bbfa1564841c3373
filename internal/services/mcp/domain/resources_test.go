package domain

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/spliit-mcp/internal/groups"
)

func readRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}}
}

func TestMemberListResourceHandler(t *testing.T) {
	t.Run("returns member payload", func(t *testing.T) {
		svc := &fakeService{
			group:   groups.GroupRef{ID: "g1", Name: "Trip"},
			members: []groups.Member{{ID: "m1", Name: "Alice"}},
		}
		handler := MemberListResourceHandler(svc)
		result, err := handler(context.Background(), readRequest("group://g1/members"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Contents) != 1 {
			t.Fatalf("expected one content block, got %d", len(result.Contents))
		}
		content := result.Contents[0]
		if content.MIMEType != "application/json" {
			t.Errorf("expected JSON mime type, got %q", content.MIMEType)
		}
		var payload MemberListPayload
		if err := json.Unmarshal([]byte(content.Text), &payload); err != nil {
			t.Fatalf("payload is not valid JSON: %v", err)
		}
		if payload.Group.ID != "g1" || len(payload.Members) != 1 {
			t.Errorf("unexpected payload: %+v", payload)
		}
	})

	t.Run("rejects malformed URIs", func(t *testing.T) {
		handler := MemberListResourceHandler(&fakeService{})
		for _, uri := range []string{"", "group://", "group://g1", "group://g1/entries", "other://g1/members"} {
			if _, err := handler(context.Background(), readRequest(uri)); err == nil {
				t.Errorf("expected error for URI %q", uri)
			}
		}
	})
}

func TestEntryListResourceHandler(t *testing.T) {
	svc := &fakeService{
		group: groups.GroupRef{ID: "g1"},
		entries: []groups.Entry{{
			ID:     "e1",
			Title:  "Dinner",
			Amount: 60,
		}},
	}
	handler := EntryListResourceHandler(svc)
	result, err := handler(context.Background(), readRequest("group://g1/entries"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Contents[0].Text, "Dinner") {
		t.Errorf("expected entry in payload, got %q", result.Contents[0].Text)
	}
	if svc.listedLimit != defaultEntriesLimit {
		t.Errorf("expected default page size, got %d", svc.listedLimit)
	}
}
