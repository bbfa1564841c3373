// Package spliit implements the groups.Service contract against a
// Spliit-compatible HTTP API. Requests follow the tRPC JSON envelope the
// hosted service exposes: procedure inputs and outputs are wrapped in a
// {"json": ...} object under /api/trpc/{procedure}.
package spliit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/louisbranch/spliit-mcp/internal/groups"
	"github.com/louisbranch/spliit-mcp/internal/groups/balance"
)

const (
	// DefaultBaseURL is the hosted Spliit instance.
	DefaultBaseURL = "https://spliit.app"

	defaultHTTPTimeout = 15 * time.Second
)

// Client talks to a Spliit-compatible API. It is safe for concurrent use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	defaultGroup groups.Selector
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client for the given base URL. defaultGroup is re-resolved on
// every DefaultGroup call so upstream currency changes are observed.
func New(baseURL string, defaultGroup groups.Selector, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
		defaultGroup: defaultGroup,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wire shapes for the tRPC envelope.

type trpcEnvelope struct {
	Result struct {
		Data struct {
			JSON json.RawMessage `json:"json"`
		} `json:"data"`
	} `json:"result"`
}

type wireParticipant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireGroup struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Currency     string            `json:"currency"`
	Participants []wireParticipant `json:"participants"`
}

type wireShare struct {
	ParticipantID string `json:"participantId"`
	// Amounts and shares travel as integer subunits: cents for paid amounts,
	// 1/10000 fractions for shares, matching the upstream schema.
	Amount int64 `json:"amount,omitempty"`
	Shares int64 `json:"shares,omitempty"`
}

type wireExpense struct {
	ID        string      `json:"id"`
	GroupID   string      `json:"groupId"`
	Title     string      `json:"title"`
	Amount    int64       `json:"amount"`
	Currency  string      `json:"currency"`
	PaidBy    []wireShare `json:"paidBy"`
	PaidFor   []wireShare `json:"paidFor"`
	CreatedAt time.Time   `json:"createdAt"`
}

// DefaultGroup implements groups.Service.
func (c *Client) DefaultGroup(ctx context.Context) (groups.GroupRef, error) {
	if c.defaultGroup.IsZero() {
		return groups.GroupRef{}, groups.ErrNoDefaultGroup
	}
	return c.ResolveGroup(ctx, c.defaultGroup)
}

// ResolveGroup implements groups.Service. GroupID wins over GroupCode;
// GroupName selection is unsupported and fails explicitly.
func (c *Client) ResolveGroup(ctx context.Context, sel groups.Selector) (groups.GroupRef, error) {
	switch {
	case sel.GroupID != "":
		return c.fetchGroupRef(ctx, sel.GroupID)
	case sel.GroupCode != "":
		id, err := GroupIDFromCode(sel.GroupCode)
		if err != nil {
			return groups.GroupRef{}, err
		}
		return c.fetchGroupRef(ctx, id)
	case sel.GroupName != "":
		return groups.GroupRef{}, groups.ErrUnsupportedSelector
	default:
		return groups.GroupRef{}, groups.ErrNoDefaultGroup
	}
}

// ListMembers implements groups.Service.
func (c *Client) ListMembers(ctx context.Context, groupID string) ([]groups.Member, error) {
	group, err := c.fetchGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members := make([]groups.Member, 0, len(group.Participants))
	for _, p := range group.Participants {
		members = append(members, groups.Member{ID: p.ID, Name: p.Name})
	}
	return members, nil
}

// CreateExpense implements groups.Service. Float amounts are converted to
// integer subunits at this boundary; the tool layer never rounds.
func (c *Client) CreateExpense(ctx context.Context, expense groups.Expense) (groups.Entry, error) {
	paidBy := make([]wireShare, 0, len(expense.Payers))
	for _, p := range expense.Payers {
		paidBy = append(paidBy, wireShare{ParticipantID: p.MemberID, Amount: toCents(p.Amount)})
	}
	paidFor := make([]wireShare, 0, len(expense.Profiteers))
	for _, p := range expense.Profiteers {
		paidFor = append(paidFor, wireShare{ParticipantID: p.MemberID, Shares: toShareUnits(p.Share)})
	}

	input := struct {
		GroupID   string      `json:"groupId"`
		Title     string      `json:"title"`
		Amount    int64       `json:"amount"`
		Currency  string      `json:"currency"`
		SplitMode string      `json:"splitMode"`
		PaidBy    []wireShare `json:"paidBy"`
		PaidFor   []wireShare `json:"paidFor"`
	}{
		GroupID:   expense.GroupID,
		Title:     expense.Title,
		Amount:    toCents(expense.Amount),
		Currency:  expense.CurrencyCode,
		SplitMode: "BY_SHARES",
		PaidBy:    paidBy,
		PaidFor:   paidFor,
	}

	var created wireExpense
	if err := c.post(ctx, "groups.expenses.create", input, &created); err != nil {
		return groups.Entry{}, fmt.Errorf("create expense: %w", err)
	}
	return entryFromWire(created), nil
}

// ListEntries implements groups.Service.
func (c *Client) ListEntries(ctx context.Context, groupID string, offset, limit int) ([]groups.Entry, error) {
	input := struct {
		GroupID string `json:"groupId"`
		Offset  int    `json:"offset"`
		Limit   int    `json:"limit"`
	}{GroupID: groupID, Offset: offset, Limit: limit}

	var payload struct {
		Expenses []wireExpense `json:"expenses"`
	}
	if err := c.get(ctx, "groups.expenses.list", input, &payload); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	entries := make([]groups.Entry, 0, len(payload.Expenses))
	for _, e := range payload.Expenses {
		entries = append(entries, entryFromWire(e))
	}
	return entries, nil
}

// Balance implements groups.Service. The upstream balance endpoint is not
// part of the public surface this client depends on, so balances are computed
// locally from the snapshot the caller already fetched.
func (c *Client) Balance(_ context.Context, group groups.GroupRef, members []groups.Member, entries []groups.Entry) (groups.BalanceSummary, error) {
	return balance.Compute(group, members, entries), nil
}

func (c *Client) fetchGroupRef(ctx context.Context, groupID string) (groups.GroupRef, error) {
	group, err := c.fetchGroup(ctx, groupID)
	if err != nil {
		return groups.GroupRef{}, err
	}
	return groups.GroupRef{ID: group.ID, Name: group.Name, CurrencyCode: group.Currency}, nil
}

func (c *Client) fetchGroup(ctx context.Context, groupID string) (wireGroup, error) {
	input := struct {
		GroupID string `json:"groupId"`
	}{GroupID: groupID}

	var payload struct {
		Group *wireGroup `json:"group"`
	}
	if err := c.get(ctx, "groups.get", input, &payload); err != nil {
		return wireGroup{}, fmt.Errorf("get group: %w", err)
	}
	if payload.Group == nil {
		return wireGroup{}, &groups.NotFoundError{Kind: "group", Key: groupID}
	}
	return *payload.Group, nil
}

// get performs a tRPC query: the input rides URL-encoded in the query string.
func (c *Client) get(ctx context.Context, procedure string, input, output any) error {
	wrapped, err := json.Marshal(map[string]any{"json": input})
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}
	endpoint := fmt.Sprintf("%s/api/trpc/%s?input=%s", c.baseURL, procedure, url.QueryEscape(string(wrapped)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, procedure, output)
}

// post performs a tRPC mutation with the input in the request body.
func (c *Client) post(ctx context.Context, procedure string, input, output any) error {
	wrapped, err := json.Marshal(map[string]any{"json": input})
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}
	endpoint := fmt.Sprintf("%s/api/trpc/%s", c.baseURL, procedure)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(wrapped))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, procedure, output)
}

func (c *Client) do(req *http.Request, procedure string, output any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", procedure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", procedure, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return &groups.NotFoundError{Kind: "group", Key: procedure}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d: %s", procedure, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope trpcEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%s: decode envelope: %w", procedure, err)
	}
	if output == nil || len(envelope.Result.Data.JSON) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result.Data.JSON, output); err != nil {
		return fmt.Errorf("%s: decode payload: %w", procedure, err)
	}
	return nil
}

func entryFromWire(e wireExpense) groups.Entry {
	entry := groups.Entry{
		ID:           e.ID,
		GroupID:      e.GroupID,
		Title:        e.Title,
		Amount:       fromCents(e.Amount),
		CurrencyCode: e.Currency,
		CreatedAt:    e.CreatedAt,
	}
	for _, p := range e.PaidBy {
		entry.Payers = append(entry.Payers, groups.Payer{MemberID: p.ParticipantID, Amount: fromCents(p.Amount)})
	}
	for _, p := range e.PaidFor {
		entry.Profiteers = append(entry.Profiteers, groups.Profiteer{MemberID: p.ParticipantID, Share: fromShareUnits(p.Shares)})
	}
	return entry
}

// GroupIDFromCode extracts a group identifier from an invite code or share
// URL. Share links embed the group id as the last path segment under
// /groups/; a bare code is the id itself.
func GroupIDFromCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("group code is empty")
	}
	if !strings.Contains(code, "/") {
		return code, nil
	}
	parsed, err := url.Parse(code)
	if err != nil {
		return "", fmt.Errorf("parse group code %q: %w", code, err)
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, segment := range segments {
		if segment == "groups" && i+1 < len(segments) {
			return segments[i+1], nil
		}
	}
	return "", fmt.Errorf("group code %q does not contain a group id", code)
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fromCents(cents int64) float64 {
	return float64(cents) / 100
}

func toShareUnits(share float64) int64 {
	return int64(math.Round(share * 10000))
}

func fromShareUnits(units int64) float64 {
	return float64(units) / 10000
}
