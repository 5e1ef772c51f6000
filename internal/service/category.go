package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// CategoryServiceOptions groups dependencies for CategoryService.
type CategoryServiceOptions struct {
	Categories core.CategoryRepository // Required: category storage
	Logger     *slog.Logger
}

// CategoryService serves the public category list and admin-managed CRUD.
type CategoryService struct {
	categories core.CategoryRepository
	logger     *slog.Logger
}

// NewCategoryService constructs a new CategoryService.
func NewCategoryService(opts CategoryServiceOptions) (*CategoryService, error) {
	if opts.Categories == nil {
		return nil, errors.New("CategoryRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "category_service")
	}

	return &CategoryService{categories: opts.Categories, logger: logger}, nil
}

// MustNewCategoryService constructs a new CategoryService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewCategoryService(opts CategoryServiceOptions) *CategoryService {
	svc, err := NewCategoryService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast during startup wiring when configuration is invalid
		panic(fmt.Sprintf("failed to create CategoryService: %v", err))
	}
	return svc
}

// List returns active categories in sort order. Admins may include inactive
// ones.
func (s *CategoryService) List(ctx context.Context, actor Actor, includeInactive bool) ([]*model.Category, error) {
	activeOnly := !(includeInactive && actor.IsAdmin())
	return s.categories.List(ctx, activeOnly)
}

// GetBySlug resolves a category by its URL slug.
func (s *CategoryService) GetBySlug(ctx context.Context, slug string) (*model.Category, error) {
	return s.categories.GetBySlug(ctx, slug)
}

// Create adds a category. Admin only.
func (s *CategoryService) Create(
	ctx context.Context,
	actor Actor,
	req *model.CreateCategoryRequest,
) (*model.Category, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	category, err := s.categories.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "category created",
			"category_id", category.ID, "slug", category.Slug)
	}
	return category, nil
}

// Update modifies a category. Admin only.
func (s *CategoryService) Update(
	ctx context.Context,
	actor Actor,
	id string,
	req model.UpdateCategoryRequest,
) (*model.Category, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.categories.Update(ctx, id, req)
}

// Delete removes a category. Admin only. Events keep their other categories.
func (s *CategoryService) Delete(ctx context.Context, actor Actor, id string) (bool, error) {
	if !actor.IsAdmin() {
		return false, ErrForbidden
	}

	ok, err := s.categories.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if ok && s.logger != nil {
		s.logger.InfoContext(ctx, "category deleted", "category_id", id)
	}
	return ok, nil
}
