// Package memory is a process-local Store used when no database is configured and in service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
)

type state struct {
	categories map[int64]models.Category
	products   map[int64]models.Product
	reviews    map[int64]models.Review
	users      map[int64]models.User
	nextID     map[string]int64
}

func newState() *state {
	return &state{
		categories: map[int64]models.Category{},
		products:   map[int64]models.Product{},
		reviews:    map[int64]models.Review{},
		users:      map[int64]models.User{},
		nextID:     map[string]int64{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.reviews {
		c.reviews[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.nextID {
		c.nextID[k] = v
	}
	return c
}

func (s *state) id(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

// Store serializes transactions behind one mutex and restores a snapshot when fn fails.
type Store struct {
	mu    sync.Mutex
	data  *state
	clock func() time.Time
}

func NewStore() *Store {
	return &Store{data: newState(), clock: time.Now}
}

func (s *Store) WithTx(ctx context.Context, fn func(r *repositories.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	tx := &txState{data: s.data, now: s.clock().UTC()}
	repos := &repositories.Repos{
		Categories: &categoryRepo{tx},
		Products:   &productRepo{tx},
		Reviews:    &reviewRepo{tx},
		Users:      &userRepo{tx},
	}
	if err := fn(repos); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

type txState struct {
	data *state
	now  time.Time
}

var _ repositories.Store = (*Store)(nil)
