package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/louisbranch/spliit-mcp/internal/groups"
)

func openTestStore(t *testing.T, defaultGroup groups.Selector) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"), defaultGroup)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedGroup(t *testing.T, store *Store, code string) (groups.GroupRef, groups.Member, groups.Member) {
	t.Helper()
	ctx := context.Background()
	group, err := store.CreateGroup(ctx, "Trip", "USD", code)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	alice, err := store.AddMember(ctx, group.ID, "Alice")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	bob, err := store.AddMember(ctx, group.ID, "Bob")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	return group, alice, bob
}

func TestStoreResolveGroup(t *testing.T) {
	store := openTestStore(t, groups.Selector{})
	group, _, _ := seedGroup(t, store, "trip-code")
	ctx := context.Background()

	t.Run("by id", func(t *testing.T) {
		ref, err := store.ResolveGroup(ctx, groups.Selector{GroupID: group.ID})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ref.Name != "Trip" || ref.CurrencyCode != "USD" {
			t.Errorf("unexpected group: %+v", ref)
		}
	})

	t.Run("by code", func(t *testing.T) {
		ref, err := store.ResolveGroup(ctx, groups.Selector{GroupCode: "trip-code"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ref.ID != group.ID {
			t.Errorf("expected %q, got %q", group.ID, ref.ID)
		}
	})

	t.Run("id wins over code", func(t *testing.T) {
		ref, err := store.ResolveGroup(ctx, groups.Selector{GroupID: group.ID, GroupCode: "nonexistent"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ref.ID != group.ID {
			t.Errorf("expected id selector to win, got %+v", ref)
		}
	})

	t.Run("by name is unsupported", func(t *testing.T) {
		_, err := store.ResolveGroup(ctx, groups.Selector{GroupName: "Trip"})
		if !errors.Is(err, groups.ErrUnsupportedSelector) {
			t.Errorf("expected ErrUnsupportedSelector, got %v", err)
		}
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := store.ResolveGroup(ctx, groups.Selector{GroupID: "nope"})
		if !groups.IsNotFound(err) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestStoreDefaultGroup(t *testing.T) {
	t.Run("resolves configured code", func(t *testing.T) {
		store := openTestStore(t, groups.Selector{GroupCode: "trip-code"})
		group, _, _ := seedGroup(t, store, "trip-code")
		ref, err := store.DefaultGroup(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ref.ID != group.ID {
			t.Errorf("expected %q, got %q", group.ID, ref.ID)
		}
	})

	t.Run("unconfigured default fails", func(t *testing.T) {
		store := openTestStore(t, groups.Selector{})
		_, err := store.DefaultGroup(context.Background())
		if !errors.Is(err, groups.ErrNoDefaultGroup) {
			t.Errorf("expected ErrNoDefaultGroup, got %v", err)
		}
	})
}

func TestStoreListMembers(t *testing.T) {
	store := openTestStore(t, groups.Selector{})
	group, alice, bob := seedGroup(t, store, "")

	members, err := store.ListMembers(context.Background(), group.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	ids := map[string]string{}
	for _, m := range members {
		ids[m.Name] = m.ID
	}
	if ids["Alice"] != alice.ID || ids["Bob"] != bob.ID {
		t.Errorf("unexpected members: %+v", members)
	}
}

func TestStoreCreateAndListEntries(t *testing.T) {
	store := openTestStore(t, groups.Selector{})
	group, alice, bob := seedGroup(t, store, "")
	ctx := context.Background()

	expense := groups.Expense{
		GroupID:      group.ID,
		Title:        "Dinner",
		Amount:       60,
		CurrencyCode: "USD",
		Payers:       []groups.Payer{{MemberID: alice.ID, Amount: 60}},
		Profiteers: []groups.Profiteer{
			{MemberID: alice.ID, Share: 0.5},
			{MemberID: bob.ID, Share: 0.5},
		},
	}
	created, err := store.CreateExpense(ctx, expense)
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Errorf("expected populated entry, got %+v", created)
	}

	entries, err := store.ListEntries(ctx, group.ID, 0, 10)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Title != "Dinner" || entry.Amount != 60 || entry.CurrencyCode != "USD" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if len(entry.Payers) != 1 || entry.Payers[0].MemberID != alice.ID || entry.Payers[0].Amount != 60 {
		t.Errorf("unexpected payers: %+v", entry.Payers)
	}
	if len(entry.Profiteers) != 2 {
		t.Errorf("unexpected profiteers: %+v", entry.Profiteers)
	}

	t.Run("unknown group is rejected by foreign keys", func(t *testing.T) {
		bad := expense
		bad.GroupID = "ghost"
		if _, err := store.CreateExpense(ctx, bad); err == nil {
			t.Error("expected foreign key violation")
		}
	})

	t.Run("paging", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			if _, err := store.CreateExpense(ctx, expense); err != nil {
				t.Fatalf("create expense: %v", err)
			}
		}
		page, err := store.ListEntries(ctx, group.ID, 0, 3)
		if err != nil {
			t.Fatalf("list entries: %v", err)
		}
		if len(page) != 3 {
			t.Errorf("expected page of 3, got %d", len(page))
		}
		rest, err := store.ListEntries(ctx, group.ID, 3, 10)
		if err != nil {
			t.Fatalf("list entries: %v", err)
		}
		if len(rest) != 3 {
			t.Errorf("expected remaining 3, got %d", len(rest))
		}
	})
}

func TestStoreBalance(t *testing.T) {
	store := openTestStore(t, groups.Selector{})
	group, alice, bob := seedGroup(t, store, "")
	ctx := context.Background()

	_, err := store.CreateExpense(ctx, groups.Expense{
		GroupID:      group.ID,
		Title:        "Dinner",
		Amount:       60,
		CurrencyCode: "USD",
		Payers:       []groups.Payer{{MemberID: alice.ID, Amount: 60}},
		Profiteers: []groups.Profiteer{
			{MemberID: alice.ID, Share: 0.5},
			{MemberID: bob.ID, Share: 0.5},
		},
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}

	members, err := store.ListMembers(ctx, group.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	entries, err := store.ListEntries(ctx, group.ID, 0, 100)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	summary, err := store.Balance(ctx, group, members, entries)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if summary.TotalSpent != 60 {
		t.Errorf("expected total 60, got %v", summary.TotalSpent)
	}
	nets := map[string]float64{}
	for _, m := range summary.Members {
		nets[m.MemberID] = m.Net
	}
	if nets[alice.ID] != 30 || nets[bob.ID] != -30 {
		t.Errorf("unexpected nets: %+v", nets)
	}
}
