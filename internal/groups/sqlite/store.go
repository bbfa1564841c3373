// Package sqlite implements the groups.Service contract on a local sqlite
// database. It exists for development and tests: the MCP surface behaves the
// same whether it fronts the hosted API or a throwaway local file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/louisbranch/spliit-mcp/internal/groups"
	"github.com/louisbranch/spliit-mcp/internal/groups/balance"
)

// Store is a sqlite-backed groups.Service.
type Store struct {
	db           *sql.DB
	defaultGroup groups.Selector
}

// Open runs migrations and opens the database at path, creating the file if
// it does not exist.
func Open(path string, defaultGroup groups.Selector) (*Store, error) {
	if err := RunMigrations(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &Store{db: db, defaultGroup: defaultGroup}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateGroup inserts a group. code may be empty; when set it must be unique
// and becomes resolvable through Selector.GroupCode.
func (s *Store) CreateGroup(ctx context.Context, name, currency, code string) (groups.GroupRef, error) {
	if currency == "" {
		currency = "EUR"
	}
	id := uuid.NewString()
	var codeValue any
	if code != "" {
		codeValue = code
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO expense_groups (id, name, currency, code) VALUES (?, ?, ?, ?)",
		id, name, currency, codeValue)
	if err != nil {
		return groups.GroupRef{}, fmt.Errorf("insert group: %w", err)
	}
	return groups.GroupRef{ID: id, Name: name, CurrencyCode: currency}, nil
}

// AddMember inserts a member into a group.
func (s *Store) AddMember(ctx context.Context, groupID, name string) (groups.Member, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO members (id, group_id, name) VALUES (?, ?, ?)",
		id, groupID, name)
	if err != nil {
		return groups.Member{}, fmt.Errorf("insert member: %w", err)
	}
	return groups.Member{ID: id, Name: name}, nil
}

// DefaultGroup implements groups.Service.
func (s *Store) DefaultGroup(ctx context.Context) (groups.GroupRef, error) {
	if s.defaultGroup.IsZero() {
		return groups.GroupRef{}, groups.ErrNoDefaultGroup
	}
	return s.ResolveGroup(ctx, s.defaultGroup)
}

// ResolveGroup implements groups.Service.
func (s *Store) ResolveGroup(ctx context.Context, sel groups.Selector) (groups.GroupRef, error) {
	switch {
	case sel.GroupID != "":
		return s.groupBy(ctx, "id", sel.GroupID)
	case sel.GroupCode != "":
		return s.groupBy(ctx, "code", sel.GroupCode)
	case sel.GroupName != "":
		return groups.GroupRef{}, groups.ErrUnsupportedSelector
	default:
		return groups.GroupRef{}, groups.ErrNoDefaultGroup
	}
}

func (s *Store) groupBy(ctx context.Context, column, key string) (groups.GroupRef, error) {
	var ref groups.GroupRef
	query := fmt.Sprintf("SELECT id, name, currency FROM expense_groups WHERE %s = ?", column)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&ref.ID, &ref.Name, &ref.CurrencyCode)
	if errors.Is(err, sql.ErrNoRows) {
		return groups.GroupRef{}, &groups.NotFoundError{Kind: "group", Key: key}
	}
	if err != nil {
		return groups.GroupRef{}, fmt.Errorf("query group: %w", err)
	}
	return ref, nil
}

// ListMembers implements groups.Service.
func (s *Store) ListMembers(ctx context.Context, groupID string) ([]groups.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name FROM members WHERE group_id = ? ORDER BY created_at, id", groupID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []groups.Member
	for rows.Next() {
		var m groups.Member
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// CreateExpense implements groups.Service. The entry and its party rows are
// written in one transaction.
func (s *Store) CreateExpense(ctx context.Context, expense groups.Expense) (groups.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return groups.Entry{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	createdAt := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		"INSERT INTO entries (id, group_id, title, amount, currency, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, expense.GroupID, expense.Title, expense.Amount, expense.CurrencyCode, createdAt)
	if err != nil {
		return groups.Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	for _, payer := range expense.Payers {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO entry_payers (entry_id, member_id, amount) VALUES (?, ?, ?)",
			id, payer.MemberID, payer.Amount)
		if err != nil {
			return groups.Entry{}, fmt.Errorf("insert payer: %w", err)
		}
	}
	for _, profiteer := range expense.Profiteers {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO entry_shares (entry_id, member_id, share) VALUES (?, ?, ?)",
			id, profiteer.MemberID, profiteer.Share)
		if err != nil {
			return groups.Entry{}, fmt.Errorf("insert share: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return groups.Entry{}, fmt.Errorf("commit entry: %w", err)
	}

	return groups.Entry{
		ID:           id,
		GroupID:      expense.GroupID,
		Title:        expense.Title,
		Amount:       expense.Amount,
		CurrencyCode: expense.CurrencyCode,
		Payers:       expense.Payers,
		Profiteers:   expense.Profiteers,
		CreatedAt:    createdAt,
	}, nil
}

// ListEntries implements groups.Service. Entries are returned newest first.
func (s *Store) ListEntries(ctx context.Context, groupID string, offset, limit int) ([]groups.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, group_id, title, amount, currency, created_at FROM entries WHERE group_id = ? ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		groupID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []groups.Entry
	for rows.Next() {
		var e groups.Entry
		if err := rows.Scan(&e.ID, &e.GroupID, &e.Title, &e.Amount, &e.CurrencyCode, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		if err := s.loadParties(ctx, &entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s *Store) loadParties(ctx context.Context, entry *groups.Entry) error {
	payerRows, err := s.db.QueryContext(ctx,
		"SELECT member_id, amount FROM entry_payers WHERE entry_id = ?", entry.ID)
	if err != nil {
		return fmt.Errorf("query payers: %w", err)
	}
	defer payerRows.Close()
	for payerRows.Next() {
		var p groups.Payer
		if err := payerRows.Scan(&p.MemberID, &p.Amount); err != nil {
			return fmt.Errorf("scan payer: %w", err)
		}
		entry.Payers = append(entry.Payers, p)
	}
	if err := payerRows.Err(); err != nil {
		return err
	}

	shareRows, err := s.db.QueryContext(ctx,
		"SELECT member_id, share FROM entry_shares WHERE entry_id = ?", entry.ID)
	if err != nil {
		return fmt.Errorf("query shares: %w", err)
	}
	defer shareRows.Close()
	for shareRows.Next() {
		var p groups.Profiteer
		if err := shareRows.Scan(&p.MemberID, &p.Share); err != nil {
			return fmt.Errorf("scan share: %w", err)
		}
		entry.Profiteers = append(entry.Profiteers, p)
	}
	return shareRows.Err()
}

// Balance implements groups.Service.
func (s *Store) Balance(_ context.Context, group groups.GroupRef, members []groups.Member, entries []groups.Entry) (groups.BalanceSummary, error) {
	return balance.Compute(group, members, entries), nil
}
