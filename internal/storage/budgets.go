package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
)

const bucketColumns = `b.id, b.user_id, b.category_name, b.limitation, b.max_limit, b.spending,
	b.manual_spending, b.fixed, b.month, b.last_notified_band, b.updated_at`

// CreateBucket inserts a budget bucket and its category pivot rows, and sets bucket.ID.
func (r *queries) CreateBucket(ctx context.Context, bucket *model.BudgetBucket) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBucket(bucket); err != nil {
		return err
	}

	bucket.UpdatedAt = time.Now().UTC()
	result, err := r.q.ExecContext(ctx, `
		INSERT INTO user_categories (user_id, category_name, limitation, max_limit, spending,
			manual_spending, fixed, month, last_notified_band, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bucket.UserID, bucket.CategoryName, bucket.Limitation.String(), bucket.MaxLimit.String(),
		bucket.Spending.String(), bucket.ManualSpending.String(), bucket.Fixed, bucket.Month,
		string(bucket.LastNotifiedBand), bucket.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: failed to create bucket %s: %w", common.ErrPersistence, bucket.CategoryName, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get bucket ID: %w", err)
	}
	bucket.ID = id

	for _, categoryID := range bucket.CategoryIDs {
		if _, err := r.q.ExecContext(ctx,
			`INSERT INTO user_category_pivot (user_category_id, category_id) VALUES (?, ?)`,
			id, categoryID); err != nil {
			return fmt.Errorf("%w: failed to map bucket %d to category %d: %w",
				common.ErrPersistence, id, categoryID, err)
		}
	}

	return nil
}

// GetBucket returns a bucket by id or an ErrNotFound error.
func (r *queries) GetBucket(ctx context.Context, id int64) (*model.BudgetBucket, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := r.q.QueryRowContext(ctx, `SELECT `+bucketColumns+` FROM user_categories b WHERE b.id = ?`, id)
	bucket, err := scanBucket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: bucket %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query bucket: %w", common.ErrPersistence, err)
	}

	if err := r.loadBucketCategories(ctx, bucket); err != nil {
		return nil, err
	}
	return bucket, nil
}

// GetBucketForCategory returns the user's bucket mapped to the category, or nil when there is none.
// If several buckets map the same category the oldest one wins.
func (r *queries) GetBucketForCategory(ctx context.Context, userID, categoryID int64) (*model.BudgetBucket, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := r.q.QueryRowContext(ctx, `
		SELECT `+bucketColumns+`
		FROM user_categories b
		JOIN user_category_pivot p ON p.user_category_id = b.id
		WHERE b.user_id = ? AND p.category_id = ?
		ORDER BY b.id
		LIMIT 1`, userID, categoryID)
	bucket, err := scanBucket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query bucket for category: %w", common.ErrPersistence, err)
	}

	if err := r.loadBucketCategories(ctx, bucket); err != nil {
		return nil, err
	}
	return bucket, nil
}

// ListBuckets returns the user's buckets in creation order.
func (r *queries) ListBuckets(ctx context.Context, userID int64) ([]model.BudgetBucket, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+bucketColumns+` FROM user_categories b WHERE b.user_id = ? ORDER BY b.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list buckets: %w", common.ErrPersistence, err)
	}

	var buckets []model.BudgetBucket
	for rows.Next() {
		bucket, scanErr := scanBucket(rows)
		if scanErr != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan bucket: %w", scanErr)
		}
		buckets = append(buckets, *bucket)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("error iterating buckets: %w", err)
	}
	// Release the cursor before issuing the pivot queries; the pool holds a single connection.
	_ = rows.Close()

	for i := range buckets {
		if err := r.loadBucketCategories(ctx, &buckets[i]); err != nil {
			return nil, err
		}
	}
	return buckets, nil
}

// UpdateBucket persists the mutable fields of a bucket. The category mapping is not changed.
func (r *queries) UpdateBucket(ctx context.Context, bucket *model.BudgetBucket) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if bucket == nil {
		return fmt.Errorf("%w: %w: bucket", common.ErrValidation, ErrNilParameter)
	}

	bucket.UpdatedAt = time.Now().UTC()
	result, err := r.q.ExecContext(ctx, `
		UPDATE user_categories SET
			limitation = ?, max_limit = ?, spending = ?, manual_spending = ?,
			fixed = ?, month = ?, last_notified_band = ?, updated_at = ?
		WHERE id = ?`,
		bucket.Limitation.String(), bucket.MaxLimit.String(), bucket.Spending.String(),
		bucket.ManualSpending.String(), bucket.Fixed, bucket.Month, string(bucket.LastNotifiedBand),
		bucket.UpdatedAt, bucket.ID)
	if err != nil {
		return fmt.Errorf("%w: failed to update bucket %d: %w", common.ErrPersistence, bucket.ID, err)
	}
	return expectOneRow(result, "bucket", bucket.ID)
}

// UpsertProjection creates or replaces the projection for (user, category, month).
func (r *queries) UpsertProjection(ctx context.Context, projection *model.ProjectedCategoryBudget) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if projection == nil {
		return fmt.Errorf("%w: %w: projection", common.ErrValidation, ErrNilParameter)
	}
	if err := validateString(projection.Month, "month"); err != nil {
		return err
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO user_future_categories (user_id, category_id, category_name, month, limitation, max_limit)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, category_id, month) DO UPDATE SET
			category_name = excluded.category_name,
			limitation = excluded.limitation,
			max_limit = excluded.max_limit`,
		projection.UserID, projection.CategoryID, projection.CategoryName, projection.Month,
		projection.Limitation.String(), projection.MaxLimit.String())
	if err != nil {
		return fmt.Errorf("%w: failed to upsert projection: %w", common.ErrPersistence, err)
	}

	return r.q.QueryRowContext(ctx,
		`SELECT id FROM user_future_categories WHERE user_id = ? AND category_id = ? AND month = ?`,
		projection.UserID, projection.CategoryID, projection.Month).Scan(&projection.ID)
}

// ListProjections returns the user's projections ordered by category then id.
func (r *queries) ListProjections(ctx context.Context, userID int64) ([]model.ProjectedCategoryBudget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, category_id, category_name, month, limitation, max_limit
		FROM user_future_categories
		WHERE user_id = ?
		ORDER BY category_id, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list projections: %w", common.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	var projections []model.ProjectedCategoryBudget
	for rows.Next() {
		var p model.ProjectedCategoryBudget
		if err := rows.Scan(&p.ID, &p.UserID, &p.CategoryID, &p.CategoryName, &p.Month,
			&p.Limitation, &p.MaxLimit); err != nil {
			return nil, fmt.Errorf("failed to scan projection: %w", err)
		}
		projections = append(projections, p)
	}
	return projections, rows.Err()
}

func (r *queries) loadBucketCategories(ctx context.Context, bucket *model.BudgetBucket) error {
	rows, err := r.q.QueryContext(ctx,
		`SELECT category_id FROM user_category_pivot WHERE user_category_id = ? ORDER BY category_id`,
		bucket.ID)
	if err != nil {
		return fmt.Errorf("%w: failed to load bucket categories: %w", common.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	bucket.CategoryIDs = nil
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan category id: %w", err)
		}
		bucket.CategoryIDs = append(bucket.CategoryIDs, id)
	}
	return rows.Err()
}

func scanBucket(s scanner) (*model.BudgetBucket, error) {
	var (
		b    model.BudgetBucket
		band string
	)
	err := s.Scan(&b.ID, &b.UserID, &b.CategoryName, &b.Limitation, &b.MaxLimit, &b.Spending,
		&b.ManualSpending, &b.Fixed, &b.Month, &band, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.LastNotifiedBand = model.Band(band)
	return &b, nil
}
