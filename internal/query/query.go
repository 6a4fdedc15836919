// Package query builds owner-scoped record predicates and the pagination
// arithmetic used by transaction listing.
package query

import (
	"strings"

	"tally/internal/core"
)

// Filter narrows a listing to one owner's records, optionally by kind,
// category and an inclusive date window. Zero-valued dimensions are ignored.
type Filter struct {
	OwnerID  string
	Kind     core.Kind
	Category string
	Start    core.Date
	End      core.Date
}

// Compile renders the filter as a SQL WHERE body plus bind args. The owner
// predicate is always present.
func (f Filter) Compile() (string, []any) {
	clauses := []string{"owner_id = ?"}
	args := []any{f.OwnerID}

	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if !f.Start.IsZero() {
		clauses = append(clauses, "occurred_at >= ?")
		args = append(args, f.Start.String())
	}
	if !f.End.IsZero() {
		clauses = append(clauses, "occurred_at <= ?")
		args = append(args, f.End.String())
	}

	return strings.Join(clauses, " AND "), args
}

// Page is a resolved page request. Number and Size are always >= 1.
type Page struct {
	Number int
	Size   int
}

// NormalizePage coerces raw page parameters. Non-positive numbers become
// page 1; non-positive sizes fall back to defaultSize; sizes above maxSize
// are clamped. Malformed input is never an error.
func NormalizePage(number, size, defaultSize, maxSize int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = defaultSize
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	return Page{Number: number, Size: size}
}

// Offset returns the number of records to skip for this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Pages returns ceil(total/size). A total of zero has zero pages.
func Pages(total int64, size int) int {
	if total <= 0 || size < 1 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
