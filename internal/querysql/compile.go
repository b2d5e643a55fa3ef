package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/tally/internal/ir"
	"github.com/roach88/tally/internal/queryir"
)

// CompanionSeparator joins companion names in the LIST companions column.
const CompanionSeparator = "|"

// SQLCompiler compiles query plans to parameterized SQLite SQL.
//
// CRITICAL: every multi-row query ends in ORDER BY with an id tiebreaker and
// COLLATE BINARY on text keys, so results are deterministic for a given plan.
// CRITICAL: values are parameterized, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a plan to a (sql, params) pair.
// Plans that fail queryir.Validate are refused.
func (c *SQLCompiler) Compile(p *queryir.Plan) (string, []any, error) {
	if res := queryir.Validate(p); !res.Valid {
		return "", nil, fmt.Errorf("invalid plan: %s", strings.Join(res.Violations, "; "))
	}

	where, params, err := c.compilePredicate(p.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}

	switch p.Shape {
	case queryir.ShapeList:
		return c.compileList(p, where, params)
	case queryir.ShapeAggregate:
		return c.compileAggregate(p, where, params)
	case queryir.ShapeGrouped:
		return c.compileGrouped(p, where, params)
	default:
		return "", nil, fmt.Errorf("unsupported shape: %s", p.Shape)
	}
}

// compileList selects e.id followed by the projected columns.
func (c *SQLCompiler) compileList(p *queryir.Plan, where string, params []any) (string, []any, error) {
	cols := p.Columns
	if len(cols) == 0 {
		cols = queryir.ListColumns
	}

	parts := []string{"e.id"}
	for _, col := range cols {
		expr, err := columnSQL(col)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, expr)
	}

	order, err := c.listOrder(p.OrderBy)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM expenses e WHERE %s ORDER BY %s LIMIT ?",
		strings.Join(parts, ", "), where, order)
	return sql, append(params, int64(p.Limit)), nil
}

// listOrder renders the plan ordering and appends the id tiebreaker.
func (c *SQLCompiler) listOrder(terms []queryir.Order) (string, error) {
	if len(terms) == 0 {
		terms = []queryir.Order{queryir.DefaultOrder}
	}
	var parts []string
	for _, o := range terms {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		switch o.Field {
		case queryir.FieldDate:
			parts = append(parts, "e.date COLLATE BINARY "+dir)
		case queryir.FieldAmount:
			parts = append(parts, "e.amount "+dir)
		default:
			return "", fmt.Errorf("cannot order by %q", o.Field)
		}
	}
	parts = append(parts, "e.id ASC")
	return strings.Join(parts, ", "), nil
}

// compileAggregate produces exactly one row: (value, row_count).
// No outer ORDER BY: the result has one row by construction. A windowed
// plan aggregates over an ordered, limited subquery aliased back to e.
func (c *SQLCompiler) compileAggregate(p *queryir.Plan, where string, params []any) (string, []any, error) {
	agg, err := aggregateSQL(p.Aggregate)
	if err != nil {
		return "", nil, err
	}
	if p.Window == 0 {
		sql := fmt.Sprintf("SELECT %s AS value, COUNT(*) AS row_count FROM expenses e WHERE %s", agg, where)
		return sql, params, nil
	}

	order, err := c.listOrder(p.OrderBy)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf(
		"SELECT %s AS value, COUNT(*) AS row_count FROM (SELECT e.id, e.amount FROM expenses e WHERE %s ORDER BY %s LIMIT ?) e",
		agg, where, order)
	return sql, append(params, int64(p.Window)), nil
}

// compileGrouped produces (group_key, value, row_count) rows.
// Time buckets order chronologically; other keys order by value, largest first.
func (c *SQLCompiler) compileGrouped(p *queryir.Plan, where string, params []any) (string, []any, error) {
	key, err := groupKeySQL(p.GroupBy)
	if err != nil {
		return "", nil, err
	}
	agg, err := aggregateSQL(p.Aggregate)
	if err != nil {
		return "", nil, err
	}

	order := "value DESC, group_key ASC COLLATE BINARY"
	switch p.GroupBy {
	case queryir.GroupMonth, queryir.GroupWeek, queryir.GroupDay:
		order = "group_key ASC COLLATE BINARY"
	}

	sql := fmt.Sprintf(
		"SELECT %s AS group_key, %s AS value, COUNT(*) AS row_count FROM expenses e WHERE %s GROUP BY group_key ORDER BY %s LIMIT ?",
		key, agg, where, order)
	return sql, append(params, int64(p.Limit)), nil
}

// aggregateSQL maps an aggregate to an integer-valued SQL expression.
//
// AVG is computed as round-half-up of SUM/COUNT in integer arithmetic so no
// float ever leaves storage. Amounts are non-negative, so half-up matches
// half away from zero. With zero rows, avg/min/max are NULL and sum is 0.
func aggregateSQL(fn queryir.AggregateFunc) (string, error) {
	switch fn {
	case queryir.AggSum:
		return "COALESCE(SUM(e.amount), 0)", nil
	case queryir.AggCount:
		return "COUNT(*)", nil
	case queryir.AggAvg:
		return "(2 * SUM(e.amount) + COUNT(*)) / (2 * COUNT(*))", nil
	case queryir.AggMin:
		return "MIN(e.amount)", nil
	case queryir.AggMax:
		return "MAX(e.amount)", nil
	default:
		return "", fmt.Errorf("unsupported aggregate: %q", fn)
	}
}

func groupKeySQL(k queryir.GroupKey) (string, error) {
	switch k {
	case queryir.GroupCategory:
		return "LOWER(e.category)", nil
	case queryir.GroupSubcategory:
		return "LOWER(e.subcategory)", nil
	case queryir.GroupPaymentMethod:
		return "LOWER(e.payment_method)", nil
	case queryir.GroupMonth:
		return "strftime('%Y-%m', e.date)", nil
	case queryir.GroupWeek:
		// %W numbers weeks from the first Monday of the year.
		return "strftime('%Y-W%W', e.date)", nil
	case queryir.GroupDay:
		return "e.date", nil
	default:
		return "", fmt.Errorf("cannot group by %q", k)
	}
}

func columnSQL(f queryir.Field) (string, error) {
	switch f {
	case queryir.FieldDate, queryir.FieldAmount, queryir.FieldCategory,
		queryir.FieldSubcategory, queryir.FieldDescription, queryir.FieldPaymentMethod:
		return "e." + string(f), nil
	case queryir.FieldCompanions:
		return "COALESCE((SELECT group_concat(name, '" + CompanionSeparator + "') FROM " +
			"(SELECT c.name FROM expense_companions c WHERE c.expense_id = e.id " +
			"ORDER BY c.name_key COLLATE BINARY)), '') AS companions", nil
	default:
		return "", fmt.Errorf("unknown column %q", f)
	}
}

// compilePredicate compiles a predicate to a WHERE fragment.
// CRITICAL: values NEVER interpolated - always ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.In:
		return c.compileIn(pred)
	case *queryir.In:
		return c.compileIn(*pred)
	case queryir.Compare:
		return c.compileCompare(pred)
	case *queryir.Compare:
		return c.compileCompare(*pred)
	case queryir.Between:
		return c.compileBetween(pred)
	case *queryir.Between:
		return c.compileBetween(*pred)
	case queryir.HasAny:
		return c.compileHasAny(pred)
	case *queryir.HasAny:
		return c.compileHasAny(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	param, err := ir.ToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	if isText(eq.Field) {
		return fmt.Sprintf("LOWER(e.%s) = ?", eq.Field), []any{lower(param)}, nil
	}
	return fmt.Sprintf("e.%s = ?", eq.Field), []any{param}, nil
}

// compileIn matches text fields case-insensitively.
func (c *SQLCompiler) compileIn(in queryir.In) (string, []any, error) {
	params, err := lowerParams(in.Values)
	if err != nil {
		return "", nil, err
	}
	col := "e." + string(in.Field)
	if isText(in.Field) {
		col = "LOWER(" + col + ")"
	}
	return fmt.Sprintf("%s IN (%s)", col, placeholders(len(params))), params, nil
}

func (c *SQLCompiler) compileCompare(cmp queryir.Compare) (string, []any, error) {
	op, ok := cmp.Op.SQL()
	if !ok {
		return "", nil, fmt.Errorf("unknown comparison %q", cmp.Op)
	}
	param, err := ir.ToParam(cmp.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return fmt.Sprintf("e.%s %s ?", cmp.Field, op), []any{param}, nil
}

func (c *SQLCompiler) compileBetween(b queryir.Between) (string, []any, error) {
	low, err := ir.ToParam(b.Low)
	if err != nil {
		return "", nil, fmt.Errorf("convert low: %w", err)
	}
	high, err := ir.ToParam(b.High)
	if err != nil {
		return "", nil, fmt.Errorf("convert high: %w", err)
	}
	return fmt.Sprintf("e.%s BETWEEN ? AND ?", b.Field), []any{low, high}, nil
}

// compileHasAny joins through expense_companions on the lowercased name key.
func (c *SQLCompiler) compileHasAny(h queryir.HasAny) (string, []any, error) {
	if h.Field != queryir.FieldCompanions {
		return "", nil, fmt.Errorf("has_any on single-valued field %q", h.Field)
	}
	params, err := lowerParams(h.Values)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf(
		"EXISTS (SELECT 1 FROM expense_companions c WHERE c.expense_id = e.id AND c.name_key IN (%s))",
		placeholders(len(params)))
	return sql, params, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if _, nested := pred.(queryir.And); nested {
			sql = "(" + sql + ")"
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, " AND "), allParams, nil
}

func isText(f queryir.Field) bool {
	switch f {
	case queryir.FieldCategory, queryir.FieldSubcategory, queryir.FieldPaymentMethod:
		return true
	default:
		return false
	}
}

func lowerParams(values []ir.IRValue) ([]any, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("empty value set")
	}
	params := make([]any, len(values))
	for i, v := range values {
		p, err := ir.ToParam(v)
		if err != nil {
			return nil, fmt.Errorf("value[%d]: %w", i, err)
		}
		params[i] = lower(p)
	}
	return params, nil
}

func lower(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
