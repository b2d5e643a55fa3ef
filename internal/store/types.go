package store

import "github.com/roach88/tally/internal/queryir"

// Expense is one recorded expense. Amount is in minor units.
type Expense struct {
	ID            int64    `yaml:"-"`
	UserID        string   `yaml:"user_id"`
	Date          string   `yaml:"date"`
	Amount        int64    `yaml:"amount"`
	Category      string   `yaml:"category"`
	Subcategory   string   `yaml:"subcategory,omitempty"`
	Description   string   `yaml:"description,omitempty"`
	PaymentMethod string   `yaml:"payment_method,omitempty"`
	Companions    []string `yaml:"companions,omitempty"`
}

// Row is one LIST result. Only the plan's projected columns are populated.
type Row struct {
	ID            int64    `json:"id"`
	Date          string   `json:"date,omitempty"`
	Amount        int64    `json:"amount,omitempty"`
	Category      string   `json:"category,omitempty"`
	Subcategory   string   `json:"subcategory,omitempty"`
	Description   string   `json:"description,omitempty"`
	PaymentMethod string   `json:"payment_method,omitempty"`
	Companions    []string `json:"companions,omitempty"`
}

// Group is one GROUPED result bucket.
type Group struct {
	Key      string `json:"key"`
	Value    int64  `json:"value"`
	RowCount int64  `json:"row_count"`
}

// Result is what storage returns for a plan. Which fields are set depends
// on Shape:
//   - LIST: Rows
//   - AGGREGATE: Value (nil when undefined over zero rows) and RowCount
//   - GROUPED: Groups
type Result struct {
	PlanID    string                `json:"plan_id"`
	Shape     queryir.Shape         `json:"shape"`
	Aggregate queryir.AggregateFunc `json:"aggregate,omitempty"`
	GroupBy   queryir.GroupKey      `json:"group_by,omitempty"`
	Rows      []Row                 `json:"rows,omitempty"`
	Value     *int64                `json:"value,omitempty"`
	RowCount  int64                 `json:"row_count"`
	Groups    []Group               `json:"groups,omitempty"`
	Capped    bool                  `json:"capped"`
}
