package services

import (
	"context"
	"fmt"
	"log/slog"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/ports"
)

// CategoryService manages a user's expense types.
type CategoryService struct {
	store ports.CategoryStore
}

func NewCategoryService(store ports.CategoryStore) *CategoryService {
	return &CategoryService{store: store}
}

func (s *CategoryService) List(ctx context.Context, sess auth.Session) ([]core.ExpenseCategory, error) {
	return s.store.ListCategories(ctx, sess)
}

func (s *CategoryService) Get(ctx context.Context, sess auth.Session, id string) (core.ExpenseCategory, error) {
	return s.store.GetCategory(ctx, sess, id)
}

func (s *CategoryService) Create(ctx context.Context, sess auth.Session, c core.ExpenseCategory) (core.ExpenseCategory, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return core.ExpenseCategory{}, err
	}
	c.ID = ""
	c.UserEmail = sess.Email
	created, err := s.store.CreateCategory(ctx, sess, c)
	if err != nil {
		return core.ExpenseCategory{}, fmt.Errorf("create expense type %q: %w", c.Name, err)
	}
	return created, nil
}

func (s *CategoryService) Update(ctx context.Context, sess auth.Session, c core.ExpenseCategory) (core.ExpenseCategory, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return core.ExpenseCategory{}, err
	}
	if _, err := s.store.GetCategory(ctx, sess, c.ID); err != nil {
		return core.ExpenseCategory{}, err
	}
	c.UserEmail = sess.Email
	updated, err := s.store.UpdateCategory(ctx, sess, c)
	if err != nil {
		return core.ExpenseCategory{}, fmt.Errorf("update expense type %s: %w", c.ID, err)
	}
	return updated, nil
}

// Delete refuses to remove an expense type that budget items still use.
func (s *CategoryService) Delete(ctx context.Context, sess auth.Session, id string) error {
	used, err := s.store.CategoryInUse(ctx, sess, id)
	if err != nil {
		return err
	}
	if used {
		slog.InfoContext(ctx, "Refused to delete expense type in use", "category_id", id)
		return ErrCategoryInUse
	}
	return s.store.DeleteCategory(ctx, sess, id)
}
