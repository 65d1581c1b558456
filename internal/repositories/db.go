package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no row matches the requested id/predicate.
var ErrNotFound = errors.New("record not found")

// DBTX is the query surface shared by pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is a DBTX that can start transactions.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repos groups the repositories bound to a single transaction.
type Repos struct {
	Categories CategoryRepository
	Products   ProductRepository
	Reviews    ReviewRepository
	Users      UserRepository
}

// Store hands out transaction-scoped repositories. fn's error rolls the transaction back.
type Store interface {
	WithTx(ctx context.Context, fn func(r *Repos) error) error
}

type pgStore struct {
	pool Pool
}

func NewPgStore(pool Pool) Store {
	return &pgStore{pool: pool}
}

// NewRepos binds every repository to db.
func NewRepos(db DBTX) *Repos {
	return &Repos{
		Categories: NewCategoryRepo(db),
		Products:   NewProductRepo(db),
		Reviews:    NewReviewRepo(db),
		Users:      NewUserRepo(db),
	}
}

func (s *pgStore) WithTx(ctx context.Context, fn func(r *Repos) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(NewRepos(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
