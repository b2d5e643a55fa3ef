package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/tally/internal/queryir"
	"github.com/roach88/tally/internal/querysql"
)

// Execute runs a plan as exactly one read inside a read-only transaction.
//
// Results are deterministic for a given plan and data set. Execute performs
// no business logic beyond the declared aggregate.
func (s *Store) Execute(ctx context.Context, p *queryir.Plan) (*Result, error) {
	query, params, err := s.compiler.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("execute plan: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("execute plan: begin: %w", err)
	}
	defer tx.Rollback()

	res := &Result{
		PlanID:    p.ID,
		Shape:     p.Shape,
		Aggregate: p.Aggregate,
		GroupBy:   p.GroupBy,
		Capped:    p.Capped,
	}

	switch p.Shape {
	case queryir.ShapeList:
		err = s.readRows(ctx, tx, p, query, params, res)
	case queryir.ShapeAggregate:
		err = s.readAggregate(ctx, tx, query, params, res)
	case queryir.ShapeGrouped:
		err = s.readGroups(ctx, tx, query, params, res)
	default:
		err = fmt.Errorf("unsupported shape %q", p.Shape)
	}
	if err != nil {
		return nil, fmt.Errorf("execute plan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("execute plan: commit: %w", err)
	}
	return res, nil
}

func (s *Store) readRows(ctx context.Context, tx *sql.Tx, p *queryir.Plan, query string, params []any, res *Result) error {
	cols := p.Columns
	if len(cols) == 0 {
		cols = queryir.ListColumns
	}

	rows, err := tx.QueryContext(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	res.Rows = []Row{}
	for rows.Next() {
		var row Row
		var companions string
		dest := []any{&row.ID}
		for _, c := range cols {
			switch c {
			case queryir.FieldDate:
				dest = append(dest, &row.Date)
			case queryir.FieldAmount:
				dest = append(dest, &row.Amount)
			case queryir.FieldCategory:
				dest = append(dest, &row.Category)
			case queryir.FieldSubcategory:
				dest = append(dest, &row.Subcategory)
			case queryir.FieldDescription:
				dest = append(dest, &row.Description)
			case queryir.FieldPaymentMethod:
				dest = append(dest, &row.PaymentMethod)
			case queryir.FieldCompanions:
				dest = append(dest, &companions)
			default:
				return fmt.Errorf("unknown column %q", c)
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		row.Companions = splitCompanions(companions)
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}
	res.RowCount = int64(len(res.Rows))
	return nil
}

// readAggregate scans the single (value, row_count) row. A NULL value
// (avg/min/max over zero rows) leaves Value nil.
func (s *Store) readAggregate(ctx context.Context, tx *sql.Tx, query string, params []any, res *Result) error {
	var value sql.NullInt64
	if err := tx.QueryRowContext(ctx, query, params...).Scan(&value, &res.RowCount); err != nil {
		return fmt.Errorf("query aggregate: %w", err)
	}
	if value.Valid {
		v := value.Int64
		res.Value = &v
	}
	return nil
}

func (s *Store) readGroups(ctx context.Context, tx *sql.Tx, query string, params []any, res *Result) error {
	rows, err := tx.QueryContext(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	res.Groups = []Group{}
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.Key, &g.Value, &g.RowCount); err != nil {
			return fmt.Errorf("scan group: %w", err)
		}
		res.Groups = append(res.Groups, g)
		res.RowCount += g.RowCount
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate groups: %w", err)
	}
	return nil
}

func splitCompanions(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, querysql.CompanionSeparator)
}
