// Package domain defines the MCP tool surface for the shared-expense
// service: typed tool inputs and outputs, input schemas, name resolution,
// expense validation, and readable resources. Handlers talk to the backend
// only through the groups.Service contract.
package domain
