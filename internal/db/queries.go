package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// Page bounds list queries.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) args() (int, int) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (q *Queries) exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	tag, err := q.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// execOne is exec for statements that target a single row by key; zero
// affected rows surface as pgx.ErrNoRows.
func (q *Queries) execOne(ctx context.Context, sql string, args ...interface{}) error {
	n, err := q.exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (q *Queries) exists(ctx context.Context, sql string, args ...interface{}) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (`+sql+`)`, args...).Scan(&ok)
	return ok, err
}
