package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	libdb "campuswallet/backend/libs/db"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore is the Store backed by postgres through pgx/stdlib.
type PostgresStore struct {
	db    *sql.DB
	repos Repositories
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore returns store bound to db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, repos: bind(db)}
}

func bind(q querier) Repositories {
	return Repositories{
		Students:           &StudentRepo{q: q},
		Items:              &ItemRepo{q: q},
		Transactions:       &TransactionRepo{q: q},
		WalletTransactions: &WalletTransactionRepo{q: q},
		Admins:             &AdminRepo{q: q},
	}
}

// Repos returns repositories bound to the connection pool.
func (s *PostgresStore) Repos() Repositories {
	return s.repos
}

// WithinTx runs fn inside one postgres transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return libdb.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(ctx, bind(tx))
	})
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	if _, ok := libdb.IsUniqueViolation(err); ok {
		return ErrDuplicate
	}
	return err
}

func rowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
