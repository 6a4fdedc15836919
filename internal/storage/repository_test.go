package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/query"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedTransaction(t *testing.T, repo *SQLiteRepository, owner, title string, cents int64, kind core.Kind, category string, date core.Date) *core.Transaction {
	t.Helper()
	now := time.Now().UTC()
	tx := &core.Transaction{
		ID:         uuid.NewString(),
		OwnerID:    owner,
		Title:      title,
		Amount:     core.Money{Cents: cents},
		Kind:       kind,
		Category:   category,
		OccurredAt: date,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("seed transaction %q: %v", title, err)
	}
	return tx
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := seedTransaction(t, repo, "alice", "Coffee", 500, core.Expense, "Food", core.NewDate(2025, 1, 10))

	got, err := repo.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID || got.OwnerID != "alice" || got.Title != "Coffee" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Amount.Cents != 500 || got.Kind != core.Expense || got.Category != "Food" {
		t.Fatalf("unexpected fields: %+v", got)
	}
	if got.OccurredAt.String() != "2025-01-10" {
		t.Fatalf("unexpected date: %s", got.OccurredAt)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at changed: %v != %v", got.CreatedAt, created.CreatedAt)
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetTransaction(context.Background(), uuid.NewString())
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tx := seedTransaction(t, repo, "alice", "Coffee", 500, core.Expense, "Food", core.NewDate(2025, 1, 10))

	tx.Title = "Espresso"
	tx.Amount = core.Money{Cents: 350}
	tx.UpdatedAt = tx.UpdatedAt.Add(time.Minute)
	if err := repo.UpdateTransaction(ctx, tx); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.Title != "Espresso" || got.Amount.Cents != 350 {
		t.Fatalf("update not persisted: %+v", got)
	}

	missing := *tx
	missing.ID = uuid.NewString()
	if err := repo.UpdateTransaction(ctx, &missing); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("update of missing id: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tx := seedTransaction(t, repo, "alice", "Coffee", 500, core.Expense, "Food", core.NewDate(2025, 1, 10))

	if err := repo.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get after delete: expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteTransaction(ctx, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestListOrderingAndPagination(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Two records share a date; the later insert must sort first.
	old := seedTransaction(t, repo, "alice", "Rent", 90000, core.Expense, "Housing", core.NewDate(2025, 1, 1))
	tieA := seedTransaction(t, repo, "alice", "Lunch", 1200, core.Expense, "Food", core.NewDate(2025, 1, 15))
	tieB := seedTransaction(t, repo, "alice", "Dinner", 2500, core.Expense, "Food", core.NewDate(2025, 1, 15))
	newest := seedTransaction(t, repo, "alice", "Salary", 300000, core.Income, "Salary", core.NewDate(2025, 1, 31))
	seedTransaction(t, repo, "bob", "Noise", 999, core.Expense, "", core.NewDate(2025, 1, 20))

	f := query.Filter{OwnerID: "alice"}

	total, err := repo.CountTransactions(ctx, f)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 4 {
		t.Fatalf("count = %d, want 4", total)
	}

	all, err := repo.ListTransactions(ctx, f, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	wantOrder := []string{newest.ID, tieB.ID, tieA.ID, old.ID}
	if len(all) != 4 {
		t.Fatalf("list returned %d records, want 4", len(all))
	}
	for i, want := range wantOrder {
		if all[i].ID != want {
			t.Fatalf("position %d: got %s (%s), want %s", i, all[i].ID, all[i].Title, want)
		}
	}

	// Pages of size 2 partition the ordering with no overlap.
	page1, err := repo.ListTransactions(ctx, f, 2, 0)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	page2, err := repo.ListTransactions(ctx, f, 2, 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page1) != 2 || len(page2) != 2 {
		t.Fatalf("page sizes: %d, %d", len(page1), len(page2))
	}
	seen := map[string]bool{}
	for _, tx := range append(page1, page2...) {
		if seen[tx.ID] {
			t.Fatalf("record %s appears on two pages", tx.ID)
		}
		seen[tx.ID] = true
	}

	// Offset past the end is an empty page, not an error.
	empty, err := repo.ListTransactions(ctx, f, 10, 100)
	if err != nil {
		t.Fatalf("list past end: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d records", len(empty))
	}
}

func TestListFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedTransaction(t, repo, "alice", "Salary", 300000, core.Income, "Salary", core.NewDate(2025, 1, 31))
	seedTransaction(t, repo, "alice", "Lunch", 1200, core.Expense, "Food", core.NewDate(2025, 2, 10))
	seedTransaction(t, repo, "alice", "Dinner", 2500, core.Expense, "Food", core.NewDate(2025, 3, 5))

	byKind, err := repo.ListTransactions(ctx, query.Filter{OwnerID: "alice", Kind: core.Expense}, 10, 0)
	if err != nil {
		t.Fatalf("filter by kind: %v", err)
	}
	if len(byKind) != 2 {
		t.Fatalf("kind filter returned %d, want 2", len(byKind))
	}

	byWindow, err := repo.ListTransactions(ctx, query.Filter{
		OwnerID: "alice",
		Start:   core.NewDate(2025, 2, 1),
		End:     core.NewDate(2025, 2, 28),
	}, 10, 0)
	if err != nil {
		t.Fatalf("filter by window: %v", err)
	}
	if len(byWindow) != 1 || byWindow[0].Title != "Lunch" {
		t.Fatalf("window filter: %+v", byWindow)
	}

	byCategory, err := repo.ListTransactions(ctx, query.Filter{OwnerID: "alice", Category: "Food"}, 10, 0)
	if err != nil {
		t.Fatalf("filter by category: %v", err)
	}
	if len(byCategory) != 2 {
		t.Fatalf("category filter returned %d, want 2", len(byCategory))
	}
}

func TestMonthlySeries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedTransaction(t, repo, "alice", "Salary Jan", 300000, core.Income, "Salary", core.NewDate(2025, 1, 31))
	seedTransaction(t, repo, "alice", "Rent Jan", 90000, core.Expense, "Housing", core.NewDate(2025, 1, 1))
	seedTransaction(t, repo, "alice", "Lunch Mar", 1200, core.Expense, "Food", core.NewDate(2025, 3, 10))
	seedTransaction(t, repo, "alice", "Old", 5000, core.Expense, "", core.NewDate(2024, 6, 1))

	buckets, err := repo.MonthlySeries(ctx, "alice", core.NewDate(2025, 1, 1))
	if err != nil {
		t.Fatalf("monthly series: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want 2: %+v", len(buckets), buckets)
	}
	jan := buckets[0]
	if jan.Year != 2025 || jan.Month != 1 {
		t.Fatalf("first bucket is %d-%d, want 2025-1", jan.Year, jan.Month)
	}
	if jan.Income.Cents != 300000 || jan.Expense.Cents != 90000 {
		t.Fatalf("jan sums: income %d expense %d", jan.Income.Cents, jan.Expense.Cents)
	}
	mar := buckets[1]
	if mar.Month != 3 || mar.Income.Cents != 0 || mar.Expense.Cents != 1200 {
		t.Fatalf("mar bucket: %+v", mar)
	}
}

func TestCategoryTotals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedTransaction(t, repo, "alice", "Lunch", 1200, core.Expense, "Food", core.NewDate(2025, 1, 10))
	seedTransaction(t, repo, "alice", "Dinner", 2500, core.Expense, "Food", core.NewDate(2025, 1, 11))
	seedTransaction(t, repo, "alice", "Rent", 90000, core.Expense, "Housing", core.NewDate(2025, 1, 1))
	seedTransaction(t, repo, "alice", "Misc", 3700, core.Expense, "", core.NewDate(2025, 1, 5))
	// Equal totals break ties by category name.
	seedTransaction(t, repo, "alice", "Bus", 500, core.Expense, "Transport", core.NewDate(2025, 1, 2))
	seedTransaction(t, repo, "alice", "Apples", 500, core.Expense, "Groceries", core.NewDate(2025, 1, 3))

	totals, err := repo.CategoryTotals(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("category totals: %v", err)
	}
	want := []core.CategoryTotal{
		{Category: "Housing", Total: core.Money{Cents: 90000}},
		{Category: "", Total: core.Money{Cents: 3700}},
		{Category: "Food", Total: core.Money{Cents: 3700}},
		{Category: "Groceries", Total: core.Money{Cents: 500}},
		{Category: "Transport", Total: core.Money{Cents: 500}},
	}
	if len(totals) != len(want) {
		t.Fatalf("got %d groups, want %d: %+v", len(totals), len(want), totals)
	}
	for i := range want {
		if totals[i] != want[i] {
			t.Fatalf("group %d: got %+v, want %+v", i, totals[i], want[i])
		}
	}

	top2, err := repo.CategoryTotals(ctx, "alice", 2)
	if err != nil {
		t.Fatalf("category totals limit: %v", err)
	}
	if len(top2) != 2 || top2[0].Category != "Housing" {
		t.Fatalf("limited totals: %+v", top2)
	}
}

func TestCategoryTotalsTie(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Food == 3700 twice over: the empty label and Food carry equal totals
	// and empty string sorts first.
	seedTransaction(t, repo, "alice", "A", 3700, core.Expense, "Food", core.NewDate(2025, 1, 1))
	seedTransaction(t, repo, "alice", "B", 3700, core.Expense, "", core.NewDate(2025, 1, 2))

	totals, err := repo.CategoryTotals(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("category totals: %v", err)
	}
	if len(totals) != 2 || totals[0].Category != "" || totals[1].Category != "Food" {
		t.Fatalf("tie ordering: %+v", totals)
	}
}

func TestKindTotals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	income, expense, err := repo.KindTotals(ctx, "alice")
	if err != nil {
		t.Fatalf("kind totals on empty ledger: %v", err)
	}
	if income.Cents != 0 || expense.Cents != 0 {
		t.Fatalf("empty ledger totals: income %d expense %d", income.Cents, expense.Cents)
	}

	seedTransaction(t, repo, "alice", "Salary", 300000, core.Income, "Salary", core.NewDate(2025, 1, 31))
	seedTransaction(t, repo, "alice", "Lunch", 1200, core.Expense, "Food", core.NewDate(2025, 1, 10))
	seedTransaction(t, repo, "alice", "Rent", 90000, core.Expense, "Housing", core.NewDate(2025, 1, 1))

	income, expense, err = repo.KindTotals(ctx, "alice")
	if err != nil {
		t.Fatalf("kind totals: %v", err)
	}
	if income.Cents != 300000 || expense.Cents != 91200 {
		t.Fatalf("totals: income %d expense %d", income.Cents, expense.Cents)
	}
}

func TestMonthNameSeries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Same calendar month across two years lands in one bucket.
	seedTransaction(t, repo, "alice", "Lunch 2024", 1000, core.Expense, "Food", core.NewDate(2024, 3, 10))
	seedTransaction(t, repo, "alice", "Lunch 2025", 2000, core.Expense, "Food", core.NewDate(2025, 3, 12))
	seedTransaction(t, repo, "alice", "Salary", 300000, core.Income, "Salary", core.NewDate(2025, 1, 31))

	buckets, err := repo.MonthNameSeries(ctx, "alice")
	if err != nil {
		t.Fatalf("month name series: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want 2: %+v", len(buckets), buckets)
	}
	if buckets[0].Month != "Jan" || buckets[0].Income.Cents != 300000 {
		t.Fatalf("jan bucket: %+v", buckets[0])
	}
	if buckets[1].Month != "Mar" || buckets[1].Expense.Cents != 3000 {
		t.Fatalf("mar bucket: %+v", buckets[1])
	}
}

func TestExpenseCategoryTotals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedTransaction(t, repo, "alice", "Lunch", 1200, core.Expense, "Food", core.NewDate(2025, 1, 10))
	seedTransaction(t, repo, "alice", "Misc", 3700, core.Expense, "", core.NewDate(2025, 1, 5))
	seedTransaction(t, repo, "alice", "Salary", 300000, core.Income, "Salary", core.NewDate(2025, 1, 31))

	totals, err := repo.ExpenseCategoryTotals(ctx, "alice")
	if err != nil {
		t.Fatalf("expense category totals: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("got %d groups, want 2: %+v", len(totals), totals)
	}
	if totals[0].Category != "Uncategorized" || totals[0].Total.Cents != 3700 {
		t.Fatalf("first group: %+v", totals[0])
	}
	if totals[1].Category != "Food" || totals[1].Total.Cents != 1200 {
		t.Fatalf("second group: %+v", totals[1])
	}
}

func TestUsersAndSessions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	user := &core.User{
		ID:           uuid.NewString(),
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: "not-a-real-hash",
		CreatedAt:    now,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, err := repo.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.ID != user.ID || got.PasswordHash != user.PasswordHash {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := repo.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing user: expected ErrNotFound, got %v", err)
	}

	live := &core.Session{Token: "live", UserID: user.ID, ExpiresAt: now.Add(time.Hour)}
	dead := &core.Session{Token: "dead", UserID: user.ID, ExpiresAt: now.Add(-time.Hour)}
	for _, s := range []*core.Session{live, dead} {
		if err := repo.CreateSession(ctx, s); err != nil {
			t.Fatalf("create session %s: %v", s.Token, err)
		}
	}

	dropped, err := repo.DeleteExpiredSessions(ctx, now)
	if err != nil {
		t.Fatalf("prune sessions: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("pruned %d sessions, want 1", dropped)
	}
	if _, err := repo.GetSession(ctx, "dead"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expired session should be gone, got %v", err)
	}
	if _, err := repo.GetSession(ctx, "live"); err != nil {
		t.Fatalf("live session: %v", err)
	}
}

func TestAuditLog(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.AppendAuditEvent(ctx, "created", uuid.NewString(), "alice", now); err != nil {
		t.Fatalf("append audit event: %v", err)
	}
	if err := repo.AppendAuditEvent(ctx, "deleted", uuid.NewString(), "alice", now); err != nil {
		t.Fatalf("append audit event: %v", err)
	}
	if err := repo.AppendAuditEvent(ctx, "created", uuid.NewString(), "bob", now); err != nil {
		t.Fatalf("append audit event: %v", err)
	}

	n, err := repo.AuditEventCount(ctx, "alice")
	if err != nil {
		t.Fatalf("audit count: %v", err)
	}
	if n != 2 {
		t.Fatalf("alice audit count = %d, want 2", n)
	}
}
