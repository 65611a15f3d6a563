package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
)

const categoryColumns = `id, name, parent_id, type`

// CreateCategory creates a taxonomy node, or returns the existing node with the same name.
func (r *queries) CreateCategory(ctx context.Context, name string, parentID *int64, groupType model.CategoryGroupType) (*model.CategoryNode, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	existing, err := r.GetCategoryByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if parentID != nil {
		parent, parentErr := r.GetCategoryByID(ctx, *parentID)
		if parentErr != nil {
			return nil, parentErr
		}
		if parent == nil {
			return nil, fmt.Errorf("%w: parent category %d", common.ErrNotFound, *parentID)
		}
		if parent.IsLeaf() {
			return nil, common.Validationf("category %q cannot nest under leaf %q", name, parent.Name)
		}
		// Only top-level groups carry a need/want type.
		groupType = ""
	}

	result, err := r.q.ExecContext(ctx,
		`INSERT INTO categories (name, parent_id, type) VALUES (?, ?, ?)`,
		name, nullableID(parentID), string(groupType))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create category: %w", common.ErrPersistence, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category ID: %w", err)
	}

	slog.Debug("created category", "name", name, "id", id)
	return &model.CategoryNode{
		ID:       id,
		Name:     name,
		ParentID: parentID,
		Type:     groupType,
	}, nil
}

// GetCategoryByID returns a category by id, or nil if it does not exist.
func (r *queries) GetCategoryByID(ctx context.Context, id int64) (*model.CategoryNode, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := r.q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	return scanCategoryRow(row)
}

// GetCategoryByName returns a category by exact name, or nil if it does not exist.
func (r *queries) GetCategoryByName(ctx context.Context, name string) (*model.CategoryNode, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}

	row := r.q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE name = ?`, name)
	return scanCategoryRow(row)
}

// GetChildCategories returns the leaves of a group in insertion order.
func (r *queries) GetChildCategories(ctx context.Context, parentID int64) ([]model.CategoryNode, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	return r.listCategories(ctx, `SELECT `+categoryColumns+` FROM categories WHERE parent_id = ? ORDER BY id`, parentID)
}

// GetTopLevelCategories returns every group in insertion order.
func (r *queries) GetTopLevelCategories(ctx context.Context) ([]model.CategoryNode, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	return r.listCategories(ctx, `SELECT `+categoryColumns+` FROM categories WHERE parent_id IS NULL ORDER BY id`)
}

func (r *queries) listCategories(ctx context.Context, query string, args ...any) ([]model.CategoryNode, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query categories: %w", common.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.CategoryNode
	for rows.Next() {
		cat, scanErr := scanCategory(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		categories = append(categories, *cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(s scanner) (*model.CategoryNode, error) {
	var (
		cat       model.CategoryNode
		parentID  sql.NullInt64
		groupType string
	)
	if err := s.Scan(&cat.ID, &cat.Name, &parentID, &groupType); err != nil {
		return nil, err
	}
	if parentID.Valid {
		p := parentID.Int64
		cat.ParentID = &p
	}
	cat.Type = model.CategoryGroupType(groupType)
	return &cat, nil
}

func scanCategoryRow(row *sql.Row) (*model.CategoryNode, error) {
	cat, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query category: %w", common.ErrPersistence, err)
	}
	return cat, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
