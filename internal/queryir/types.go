package queryir

import "github.com/roach88/tally/internal/ir"

// Shape is the structural classification of a query.
//
// The set is closed. ShapeUnresolved exists so the resolver has an explicit
// terminal for "we don't know"; a plan with that shape is never executed.
type Shape string

const (
	ShapeList       Shape = "LIST"
	ShapeAggregate  Shape = "AGGREGATE"
	ShapeGrouped    Shape = "GROUPED"
	ShapeUnresolved Shape = "UNRESOLVED"
)

// Executable reports whether a plan of this shape may reach storage.
func (s Shape) Executable() bool {
	switch s {
	case ShapeList, ShapeAggregate, ShapeGrouped:
		return true
	default:
		return false
	}
}

// AggregateFunc is the aggregate applied to the amount column.
// AggNone means no aggregate was requested.
type AggregateFunc string

const (
	AggNone  AggregateFunc = ""
	AggSum   AggregateFunc = "sum"
	AggCount AggregateFunc = "count"
	AggAvg   AggregateFunc = "avg"
	AggMin   AggregateFunc = "min"
	AggMax   AggregateFunc = "max"
)

// ParseAggregate maps a name to an AggregateFunc.
func ParseAggregate(s string) (AggregateFunc, bool) {
	switch AggregateFunc(s) {
	case AggSum, AggCount, AggAvg, AggMin, AggMax:
		return AggregateFunc(s), true
	default:
		return AggNone, false
	}
}

// Field names an expense attribute a predicate, column or ordering may reference.
type Field string

const (
	FieldUserID        Field = "user_id"
	FieldDate          Field = "date"
	FieldAmount        Field = "amount"
	FieldCategory      Field = "category"
	FieldSubcategory   Field = "subcategory"
	FieldDescription   Field = "description"
	FieldPaymentMethod Field = "payment_method"
	FieldCompanions    Field = "companions"
)

// ListColumns is the allow-list of columns a LIST plan may project, in
// default projection order.
var ListColumns = []Field{
	FieldDate,
	FieldAmount,
	FieldCategory,
	FieldSubcategory,
	FieldDescription,
	FieldPaymentMethod,
	FieldCompanions,
}

// IsListColumn reports whether f may appear in a LIST projection.
func IsListColumn(f Field) bool {
	for _, c := range ListColumns {
		if c == f {
			return true
		}
	}
	return false
}

func knownField(f Field) bool {
	return f == FieldUserID || IsListColumn(f)
}

// GroupKey is the dimension a GROUPED plan partitions by.
type GroupKey string

const (
	GroupNone          GroupKey = ""
	GroupCategory      GroupKey = "category"
	GroupSubcategory   GroupKey = "subcategory"
	GroupPaymentMethod GroupKey = "payment_method"
	GroupMonth         GroupKey = "month"
	GroupWeek          GroupKey = "week"
	GroupDay           GroupKey = "day"

	// GroupCompanions is recognized so it can be refused. Companions are a
	// many-to-many attribute and grouping on them double counts amounts.
	GroupCompanions GroupKey = "companions"
)

// ParseGroupKey maps a name to a GroupKey, including the refused
// GroupCompanions key.
func ParseGroupKey(s string) (GroupKey, bool) {
	switch GroupKey(s) {
	case GroupCategory, GroupSubcategory, GroupPaymentMethod,
		GroupMonth, GroupWeek, GroupDay, GroupCompanions:
		return GroupKey(s), true
	default:
		return GroupNone, false
	}
}

// Groupable reports whether storage can partition by k.
func (k GroupKey) Groupable() bool {
	parsed, ok := ParseGroupKey(string(k))
	return ok && parsed != GroupCompanions
}

// Order is one ORDER BY term.
type Order struct {
	Field Field `json:"field"`
	Desc  bool  `json:"desc"`
}

// DefaultOrder is date descending, newest first.
var DefaultOrder = Order{Field: FieldDate, Desc: true}

// Plan is the execution-ready query handed to storage.
//
// A Plan is immutable once built. ID is the content hash of Body(), so two
// plans with equal content share an ID.
//
// Filter always starts with Equals{FieldUserID, ...}: storage never sees a
// plan that could read another user's rows.
//
// Window applies to AGGREGATE plans only: when positive, the aggregate
// covers just the first Window matching rows in OrderBy order ("total of
// my top 3 expenses"). Zero means every matching row.
type Plan struct {
	ID        string
	UserID    string
	Shape     Shape
	Filter    And
	GroupBy   GroupKey
	Aggregate AggregateFunc
	Columns   []Field
	OrderBy   []Order
	Limit     int
	Capped    bool
	Window    int
}

// Predicate is a filter condition over expense rows.
//
// This is a sealed interface. Only types in this package implement it, so
// backends can switch exhaustively.
//
// Predicate types:
//   - Equals: field = value
//   - In: field is one of values (OR semantics)
//   - Compare: field <op> value
//   - Between: low <= field <= high
//   - HasAny: a multi-valued field shares at least one value
//   - And: all predicates must be true
type Predicate interface {
	predicateNode()
}

// Equals represents field = value.
type Equals struct {
	Field Field
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// In represents field IN (values). Matching on text fields is case-insensitive.
type In struct {
	Field  Field
	Values []ir.IRValue
}

func (In) predicateNode() {}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpGT  CompareOp = "gt"
	OpGTE CompareOp = "gte"
	OpLT  CompareOp = "lt"
	OpLTE CompareOp = "lte"
	OpEQ  CompareOp = "eq"
)

// SQL returns the operator's SQL spelling.
func (op CompareOp) SQL() (string, bool) {
	switch op {
	case OpGT:
		return ">", true
	case OpGTE:
		return ">=", true
	case OpLT:
		return "<", true
	case OpLTE:
		return "<=", true
	case OpEQ:
		return "=", true
	default:
		return "", false
	}
}

// Compare represents field <op> value.
type Compare struct {
	Field Field
	Op    CompareOp
	Value ir.IRValue
}

func (Compare) predicateNode() {}

// Between is an inclusive range. Dates compare as YYYY-MM-DD strings.
type Between struct {
	Field Field
	Low   ir.IRValue
	High  ir.IRValue
}

func (Between) predicateNode() {}

// HasAny matches rows whose multi-valued field shares at least one of Values.
// Only FieldCompanions is multi-valued.
type HasAny struct {
	Field  Field
	Values []ir.IRValue
}

func (HasAny) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
