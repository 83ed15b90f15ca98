package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/cleanly/booking-api/internal/repository"
)

func sqlxGet(ctx context.Context, q sqlx.QueryerContext, dest interface{}, query string, args ...interface{}) error {
	return mapError(sqlx.GetContext(ctx, q, dest, query, args...))
}

func sqlxSelect(ctx context.Context, q sqlx.QueryerContext, dest interface{}, query string, args ...interface{}) error {
	return mapError(sqlx.SelectContext(ctx, q, dest, query, args...))
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
