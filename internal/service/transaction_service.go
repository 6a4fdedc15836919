// Package service orchestrates the ledger operations: ownership
// authorization, paginated listing, the two aggregation views and
// credential handling, on top of a narrow record-store interface.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/query"
)

// Store is the slice of the record store the transaction service needs.
// *storage.SQLiteRepository satisfies it.
type Store interface {
	CreateTransaction(ctx context.Context, t *core.Transaction) error
	GetTransaction(ctx context.Context, id string) (*core.Transaction, error)
	UpdateTransaction(ctx context.Context, t *core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	CountTransactions(ctx context.Context, f query.Filter) (int64, error)
	ListTransactions(ctx context.Context, f query.Filter, limit, offset int) ([]core.Transaction, error)
	MonthlySeries(ctx context.Context, ownerID string, since core.Date) ([]core.MonthlyBucket, error)
	CategoryTotals(ctx context.Context, ownerID string, limit int) ([]core.CategoryTotal, error)
	KindTotals(ctx context.Context, ownerID string) (income, expense core.Money, err error)
	MonthNameSeries(ctx context.Context, ownerID string) ([]core.MonthBucket, error)
	ExpenseCategoryTotals(ctx context.Context, ownerID string) ([]core.CategoryTotal, error)
}

// Options tune listing and summary behavior.
type Options struct {
	DefaultPageSize     int
	MaxPageSize         int
	SummaryWindowMonths int
	CategoryLimit       int
}

func (o Options) withDefaults() Options {
	if o.DefaultPageSize < 1 {
		o.DefaultPageSize = 10
	}
	if o.MaxPageSize < 1 {
		o.MaxPageSize = 100
	}
	if o.SummaryWindowMonths < 1 {
		o.SummaryWindowMonths = 6
	}
	if o.CategoryLimit < 1 {
		o.CategoryLimit = 10
	}
	return o
}

// TransactionService implements the seven ledger operations. Events are
// published after successful writes; a publish failure is logged and never
// fails the request.
type TransactionService struct {
	store  Store
	events *amqp.Client
	opts   Options
	now    func() time.Time
}

func NewTransactionService(store Store, events *amqp.Client, opts Options) *TransactionService {
	return &TransactionService{
		store:  store,
		events: events,
		opts:   opts.withDefaults(),
		now:    time.Now,
	}
}

// CreateRequest carries the caller-supplied fields of a new transaction.
type CreateRequest struct {
	Title      string
	Amount     core.Money
	Kind       core.Kind
	Category   string
	OccurredAt core.Date // zero means today
}

func (s *TransactionService) Create(ctx context.Context, ownerID string, req CreateRequest) (*core.Transaction, error) {
	now := s.now().UTC()

	t := &core.Transaction{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Title:      req.Title,
		Amount:     req.Amount,
		Kind:       req.Kind,
		Category:   req.Category,
		OccurredAt: req.OccurredAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if t.OccurredAt.IsZero() {
		t.OccurredAt = core.DateOf(now)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	s.publish(ctx, amqp.ActionCreated, t)
	return t, nil
}

// ListParams are the raw listing inputs. Page and Limit are coerced, the
// filter dimensions are optional.
type ListParams struct {
	Page     int
	Limit    int
	Kind     core.Kind
	Category string
	Start    core.Date
	End      core.Date
}

// ListResult is one page of records plus the pagination bookkeeping.
type ListResult struct {
	Records []core.Transaction `json:"records"`
	Total   int64              `json:"total"`
	Page    int                `json:"page"`
	Pages   int                `json:"pages"`
}

// List counts and fetches one page of the owner's records, newest event
// date first. Out-of-range pages come back empty, never as an error.
func (s *TransactionService) List(ctx context.Context, ownerID string, params ListParams) (*ListResult, error) {
	f := query.Filter{
		OwnerID:  ownerID,
		Kind:     params.Kind,
		Category: params.Category,
		Start:    params.Start,
		End:      params.End,
	}
	page := query.NormalizePage(params.Page, params.Limit, s.opts.DefaultPageSize, s.opts.MaxPageSize)

	total, err := s.store.CountTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	records, err := s.store.ListTransactions(ctx, f, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if records == nil {
		records = []core.Transaction{}
	}

	return &ListResult{
		Records: records,
		Total:   total,
		Page:    page.Number,
		Pages:   query.Pages(total, page.Size),
	}, nil
}

// Get returns a single record after the ownership check.
func (s *TransactionService) Get(ctx context.Context, ownerID, id string) (*core.Transaction, error) {
	return s.authorize(ctx, ownerID, id)
}

// UpdateRequest carries the replaceable fields of an update; nil fields keep
// their stored value. ID, owner and creation time are immutable.
type UpdateRequest struct {
	Title      *string
	Amount     *core.Money
	Kind       *core.Kind
	Category   *string
	OccurredAt *core.Date
}

func (s *TransactionService) Update(ctx context.Context, ownerID, id string, req UpdateRequest) (*core.Transaction, error) {
	t, err := s.authorize(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Amount != nil {
		t.Amount = *req.Amount
	}
	if req.Kind != nil {
		t.Kind = *req.Kind
	}
	if req.Category != nil {
		t.Category = *req.Category
	}
	if req.OccurredAt != nil {
		t.OccurredAt = *req.OccurredAt
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	s.publish(ctx, amqp.ActionUpdated, t)
	return t, nil
}

// Delete removes a record permanently. There is no soft-delete state.
func (s *TransactionService) Delete(ctx context.Context, ownerID, id string) error {
	t, err := s.authorize(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.publish(ctx, amqp.ActionDeleted, t)
	return nil
}

// Summary computes the windowed aggregation view: a trailing monthly series,
// the top category totals and the overall kind totals.
func (s *TransactionService) Summary(ctx context.Context, ownerID string) (*core.Summary, error) {
	since := s.windowStart()

	monthly, err := s.store.MonthlySeries(ctx, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	category, err := s.store.CategoryTotals(ctx, ownerID, s.opts.CategoryLimit)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	income, expense, err := s.store.KindTotals(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	if monthly == nil {
		monthly = []core.MonthlyBucket{}
	}
	if category == nil {
		category = []core.CategoryTotal{}
	}
	return &core.Summary{
		Monthly:      monthly,
		Category:     category,
		TotalIncome:  income,
		TotalExpense: expense,
	}, nil
}

// Analytics computes the unwindowed view: name-keyed month buckets over all
// records and the expense-only category breakdown.
func (s *TransactionService) Analytics(ctx context.Context, ownerID string) (*core.Analytics, error) {
	monthly, err := s.store.MonthNameSeries(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	categories, err := s.store.ExpenseCategoryTotals(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}

	if monthly == nil {
		monthly = []core.MonthBucket{}
	}
	if categories == nil {
		categories = []core.CategoryTotal{}
	}
	return &core.Analytics{
		Monthly:        monthly,
		CategoryTotals: categories,
	}, nil
}

// windowStart is midnight of the day SummaryWindowMonths months before now.
func (s *TransactionService) windowStart() core.Date {
	return core.DateOf(s.now().UTC().AddDate(0, -s.opts.SummaryWindowMonths, 0))
}

// authorize loads a record and applies the ownership check: missing records
// surface as not found, foreign records as forbidden.
func (s *TransactionService) authorize(ctx context.Context, ownerID, id string) (*core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		t = nil
	} else if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}

	if out := Authorize(t, ownerID); out != AccessGranted {
		return nil, out.Err()
	}
	return t, nil
}

func (s *TransactionService) publish(ctx context.Context, action string, t *core.Transaction) {
	if s.events == nil {
		return
	}
	ev := amqp.NewTransactionEvent(action, t.ID, t.OwnerID)
	if err := s.events.PublishTransactionEvent(ctx, ev); err != nil {
		// The write already succeeded; losing an event must not fail the request.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"error", err, "action", action, "transaction_id", t.ID)
	}
}
