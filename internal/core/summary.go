package core

// MonthlyBucket is one (year, month) group of the summary series. A bucket
// only exists when at least one record fell into it; a missing kind inside a
// bucket contributes a zero sum, not a missing field.
type MonthlyBucket struct {
	Year    int   `json:"year"`
	Month   int   `json:"month"` // 1-12
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
}

// CategoryTotal is an amount summed over one category label.
type CategoryTotal struct {
	Category string `json:"category"`
	Total    Money  `json:"total"`
}

// Summary is the windowed aggregation view: a trailing monthly series keyed
// by year+month, category totals over all records, and overall kind totals.
type Summary struct {
	Monthly      []MonthlyBucket `json:"monthly"`
	Category     []CategoryTotal `json:"category"`
	TotalIncome  Money           `json:"totalIncome"`
	TotalExpense Money           `json:"totalExpense"`
}

// MonthBucket is one analytics group, keyed by calendar-month name only, so
// the same month of different years merges into a single bucket.
type MonthBucket struct {
	Month   string `json:"month"` // "Jan".."Dec"
	Income  Money  `json:"income"`
	Expense Money  `json:"expense"`
}

// Analytics is the unwindowed aggregation view. Its semantics deliberately
// differ from Summary: no date window, name-only month keys, and a category
// breakdown over expenses only with absent categories reported as
// "Uncategorized".
type Analytics struct {
	Monthly        []MonthBucket   `json:"monthly"`
	CategoryTotals []CategoryTotal `json:"categoryTotals"`
}
