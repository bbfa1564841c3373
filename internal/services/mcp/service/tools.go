package service

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/spliit-mcp/internal/groups"
	"github.com/louisbranch/spliit-mcp/internal/services/mcp/domain"
)

// registerTools binds every tool to the group backend. Handlers are stateless
// closures over the backend, so one registration serves all sessions.
func registerTools(server *mcp.Server, svc groups.Service) {
	mcp.AddTool(server, domain.HealthTool(), domain.HealthHandler())
	mcp.AddTool(server, domain.WhoamiTool(), domain.WhoamiHandler(svc))
	mcp.AddTool(server, domain.ExpenseCreateTool(), domain.ExpenseCreateHandler(svc))
	mcp.AddTool(server, domain.EntriesListTool(), domain.EntriesListHandler(svc))
	mcp.AddTool(server, domain.GroupSummaryTool(), domain.GroupSummaryHandler(svc))
}

// registerResources binds the readable group resources.
func registerResources(server *mcp.Server, svc groups.Service) {
	server.AddResourceTemplate(domain.MemberListResourceTemplate(), domain.MemberListResourceHandler(svc))
	server.AddResourceTemplate(domain.EntryListResourceTemplate(), domain.EntryListResourceHandler(svc))
}
