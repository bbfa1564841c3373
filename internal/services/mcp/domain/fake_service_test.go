package domain

import (
	"context"

	"github.com/louisbranch/spliit-mcp/internal/groups"
	"github.com/louisbranch/spliit-mcp/internal/groups/balance"
)

// fakeService is a hand-rolled groups.Service for handler tests. Call
// arguments are captured so tests can assert on the normalized values the
// handlers pass down.
type fakeService struct {
	group    groups.GroupRef
	groupErr error

	members    []groups.Member
	membersErr error

	created   groups.Entry
	createErr error

	entries    []groups.Entry
	entriesErr error

	defaultCalls    int
	resolveCalls    int
	listMemberCalls int

	resolvedSelector groups.Selector
	createdExpense   groups.Expense
	listedOffset     int
	listedLimit      int
}

func (f *fakeService) DefaultGroup(context.Context) (groups.GroupRef, error) {
	f.defaultCalls++
	return f.group, f.groupErr
}

func (f *fakeService) ResolveGroup(_ context.Context, sel groups.Selector) (groups.GroupRef, error) {
	f.resolveCalls++
	f.resolvedSelector = sel
	return f.group, f.groupErr
}

func (f *fakeService) ListMembers(context.Context, string) ([]groups.Member, error) {
	f.listMemberCalls++
	return f.members, f.membersErr
}

func (f *fakeService) CreateExpense(_ context.Context, expense groups.Expense) (groups.Entry, error) {
	f.createdExpense = expense
	return f.created, f.createErr
}

func (f *fakeService) ListEntries(_ context.Context, _ string, offset, limit int) ([]groups.Entry, error) {
	f.listedOffset = offset
	f.listedLimit = limit
	return f.entries, f.entriesErr
}

func (f *fakeService) Balance(_ context.Context, group groups.GroupRef, members []groups.Member, entries []groups.Entry) (groups.BalanceSummary, error) {
	return balance.Compute(group, members, entries), nil
}
