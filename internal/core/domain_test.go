package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestKindValidate(t *testing.T) {
	cases := []struct {
		kind Kind
		ok   bool
	}{
		{Income, true},
		{Expense, true},
		{Kind(""), false},
		{Kind("transfer"), false},
		{Kind("INCOME"), false},
	}
	for i, tc := range cases {
		err := tc.kind.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidKind) {
			t.Fatalf("case %d expected ErrInvalidKind, got %v", i, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-10")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Year() != 2025 || d.Month() != 1 || d.Day() != 10 {
		t.Fatalf("unexpected date: %v", d)
	}
	if d.String() != "2025-01-10" {
		t.Fatalf("unexpected format: %s", d.String())
	}

	for _, bad := range []string{"", "10/01/2025", "2025-13-01", "not a date"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("ParseDate(%q) expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2025, 6, 3)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2025-06-03"` {
		t.Fatalf("unexpected marshal output: %s", b)
	}

	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Fatalf("round trip mismatch: %v != %v", back, d)
	}

	var absent Date
	if err := json.Unmarshal([]byte("null"), &absent); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !absent.IsZero() {
		t.Fatalf("null should decode to zero date, got %v", absent)
	}
}

func TestMonthName(t *testing.T) {
	cases := []struct {
		m    int
		want string
	}{
		{1, "Jan"},
		{6, "Jun"},
		{12, "Dec"},
		{0, ""},
		{13, ""},
	}
	for _, tc := range cases {
		if got := MonthName(tc.m); got != tc.want {
			t.Errorf("MonthName(%d) = %q, want %q", tc.m, got, tc.want)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Title:      "Coffee",
		Amount:     Money{Cents: 500},
		Kind:       Expense,
		Category:   "Food",
		OccurredAt: NewDate(2025, 1, 10),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	// Category is optional
	uncategorized := good
	uncategorized.Category = ""
	if err := uncategorized.Validate(); err != nil {
		t.Fatalf("empty category should validate, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"empty title", func(tr *Transaction) { tr.Title = "  " }, ErrEmptyTitle},
		{"long title", func(tr *Transaction) { tr.Title = strings.Repeat("x", 201) }, ErrTitleTooLong},
		{"zero amount", func(tr *Transaction) { tr.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(tr *Transaction) { tr.Amount = Money{Cents: -5} }, ErrInvalidAmount},
		{"bad kind", func(tr *Transaction) { tr.Kind = "savings" }, ErrInvalidKind},
		{"zero date", func(tr *Transaction) { tr.OccurredAt = Date{} }, ErrInvalidDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := good
			tc.mutate(&tr)
			err := tr.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("%v should wrap ErrValidation", err)
			}
		})
	}
}
