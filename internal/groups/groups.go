// Package groups defines the contract between the MCP tool layer and the
// shared-expense backends. The tool layer only ever talks to the Service
// interface; the concrete backends (Spliit HTTP API, local sqlite) live in
// subpackages and are selected at startup.
package groups

import (
	"context"
	"time"
)

// GroupRef identifies a resolved group. It is immutable once constructed and
// always produced by resolving a selector or the configured default group.
type GroupRef struct {
	ID           string
	Name         string
	CurrencyCode string
}

// Selector is the caller-supplied way to address a group. At most one field
// needs to be set; precedence is GroupID over GroupCode over GroupName.
// Selecting by GroupName is reserved and always fails with
// ErrUnsupportedSelector. An empty selector means "use the default group".
type Selector struct {
	GroupID   string
	GroupCode string
	GroupName string
}

// IsZero reports whether no selector field is set.
func (s Selector) IsZero() bool {
	return s.GroupID == "" && s.GroupCode == "" && s.GroupName == ""
}

// Member is one entry of a group's member snapshot. Snapshots are fetched per
// resolution and never cached; callers may add members between calls.
type Member struct {
	ID   string
	Name string
}

// Payer is a normalized payer record. MemberID is always a stable member
// identifier; display names are resolved before an Expense is built.
type Payer struct {
	MemberID string
	Amount   float64
}

// Profiteer is a normalized beneficiary record with a fractional share.
type Profiteer struct {
	MemberID string
	Share    float64
}

// Expense is a fully normalized expense-creation request. It carries member
// identifiers only and is constructed fresh per call, never persisted by the
// tool layer.
type Expense struct {
	GroupID      string
	Title        string
	Amount       float64
	CurrencyCode string
	Payers       []Payer
	Profiteers   []Profiteer
}

// Entry is the typed boundary form of a backend entry record. Fields the tool
// layer never reads stay with the backend.
type Entry struct {
	ID           string
	GroupID      string
	Title        string
	Amount       float64
	CurrencyCode string
	Payers       []Payer
	Profiteers   []Profiteer
	CreatedAt    time.Time
}

// MemberBalance is one member's aggregate position within a group.
type MemberBalance struct {
	MemberID string
	Name     string
	Paid     float64
	Owed     float64
	Net      float64
}

// BalanceSummary aggregates member balances for a group.
type BalanceSummary struct {
	CurrencyCode string
	TotalSpent   float64
	Members      []MemberBalance
}

// Service is the group data source consumed by the MCP tool layer.
//
// DefaultGroup resolves the configured default group. It is re-resolved on
// every call because the group's currency may change upstream.
type Service interface {
	DefaultGroup(ctx context.Context) (GroupRef, error)
	ResolveGroup(ctx context.Context, sel Selector) (GroupRef, error)
	ListMembers(ctx context.Context, groupID string) ([]Member, error)
	CreateExpense(ctx context.Context, expense Expense) (Entry, error)
	ListEntries(ctx context.Context, groupID string, offset, limit int) ([]Entry, error)
	Balance(ctx context.Context, group GroupRef, members []Member, entries []Entry) (BalanceSummary, error)
}
