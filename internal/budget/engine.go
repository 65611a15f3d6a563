// Package budget recomputes per-bucket spending limits from trailing income and
// expense history and writes the forward projections.
package budget

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/Veraticus/finwiz/internal/service"
	"github.com/shopspring/decimal"
)

// PercentChangeNA is reported when a bucket had no prior limitation.
const PercentChangeNA = "N/A"

// projectedMonths is how many months ahead projections are written.
const projectedMonths = 2

var (
	hundred       = decimal.NewFromInt(100)
	maxLimitRatio = decimal.NewFromFloat(0.45)
)

// Config holds the projection parameters.
type Config struct {
	WindowMonths int
	NeedPercent  decimal.Decimal
	WantPercent  decimal.Decimal
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		WindowMonths: 1,
		NeedPercent:  decimal.NewFromInt(50),
		WantPercent:  decimal.NewFromInt(30),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.WindowMonths < 1 {
		return fmt.Errorf("%w: window months must be at least 1, got %d", common.ErrInvalidConfig, c.WindowMonths)
	}
	for name, pct := range map[string]decimal.Decimal{"need": c.NeedPercent, "want": c.WantPercent} {
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return fmt.Errorf("%w: %s percent must be between 0 and 100, got %s", common.ErrInvalidConfig, name, pct)
		}
	}
	return nil
}

// Line is the outcome for one bucket.
type Line struct {
	CategoryName  string
	Type          model.CategoryGroupType
	PercentChange string
	Average       decimal.Decimal
	TypeAverage   decimal.Decimal
	LimitPercent  decimal.Decimal
	Limit         decimal.Decimal
	Limitation    decimal.Decimal
	MaxLimit      decimal.Decimal
	BucketID      int64
	CategoryID    int64
}

// Report summarizes a projection run.
type Report struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Month       string
	Lines       []Line
	Income      decimal.Decimal
	IdealNeed   decimal.Decimal
	IdealWant   decimal.Decimal
	UserID      int64
	Preview     bool
}

// Engine computes bucket limits for one user at a time.
type Engine struct {
	store  service.Storage
	locks  *common.UserLocks
	now    func() time.Time
	logger *slog.Logger
	config Config
}

// New creates an engine with the default configuration.
func New(store service.Storage, locks *common.UserLocks) *Engine {
	return NewWithConfig(store, locks, DefaultConfig())
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(store service.Storage, locks *common.UserLocks, config Config) *Engine {
	if locks == nil {
		locks = common.NewUserLocks()
	}
	if config.WindowMonths < 1 {
		config.WindowMonths = 1
	}
	return &Engine{
		store:  store,
		locks:  locks,
		config: config,
		now:    time.Now,
		logger: slog.Default().With("component", "budget"),
	}
}

// Window returns the first and last day of the trailing full-month window ending last month.
func Window(now time.Time, months int) (time.Time, time.Time) {
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := thisMonth.AddDate(0, -months, 0)
	end := thisMonth.AddDate(0, 0, -1)
	return start, end
}

// Project recomputes the user's bucket limits.
//
// In preview mode nothing is written and each line carries the limitation the
// bucket would end up with. Otherwise the buckets and the next two months of
// projections are updated in a single database transaction.
func (e *Engine) Project(ctx context.Context, userID int64, preview bool) (*Report, error) {
	if preview {
		return e.project(ctx, e.store, userID, true)
	}

	unlock := e.locks.Lock(userID)
	defer unlock()

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	report, err := e.project(ctx, tx, userID, false)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit projection: %w", common.ErrPersistence, err)
	}

	e.logger.Info("Projection complete", "user_id", userID, "buckets", len(report.Lines), "income", report.Income)
	return report, nil
}

func (e *Engine) project(ctx context.Context, repo service.Repository, userID int64, preview bool) (*Report, error) {
	if _, err := repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	start, end := Window(now, e.config.WindowMonths)
	months := decimal.NewFromInt(int64(e.config.WindowMonths))

	income, err := repo.SumTransactions(ctx, service.TransactionSumFilter{
		UserID: userID,
		Start:  start,
		End:    end,
		Type:   model.TransactionTypeIncome,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sum income: %w", err)
	}
	income = income.Round(2)

	report := &Report{
		UserID:      userID,
		WindowStart: start,
		WindowEnd:   end,
		Month:       now.Month().String(),
		Income:      income,
		IdealNeed:   income.Mul(e.config.NeedPercent).Div(hundred),
		IdealWant:   income.Mul(e.config.WantPercent).Div(hundred),
		Preview:     preview,
	}

	groups, err := repo.GetTopLevelCategories(ctx)
	if err != nil {
		return nil, err
	}

	leaves := make(map[int64][]int64, len(groups))
	byType := make(map[model.CategoryGroupType][]int64)
	for _, group := range groups {
		children, childErr := repo.GetChildCategories(ctx, group.ID)
		if childErr != nil {
			return nil, childErr
		}
		ids := make([]int64, 0, len(children))
		for _, child := range children {
			ids = append(ids, child.ID)
		}
		leaves[group.ID] = ids
		byType[group.Type] = append(byType[group.Type], ids...)
	}

	expenseAverage := func(categoryIDs []int64) (decimal.Decimal, error) {
		total, sumErr := repo.SumTransactions(ctx, service.TransactionSumFilter{
			UserID:      userID,
			Start:       start,
			End:         end,
			Type:        model.TransactionTypeExpense,
			CategoryIDs: categoryIDs,
		})
		if sumErr != nil {
			return decimal.Zero, fmt.Errorf("failed to sum expenses: %w", sumErr)
		}
		return total.Abs().Round(2).Div(months).Round(2), nil
	}

	typeAverages := make(map[model.CategoryGroupType]decimal.Decimal, len(byType))
	for groupType, ids := range byType {
		if typeAverages[groupType], err = expenseAverage(ids); err != nil {
			return nil, err
		}
	}

	for _, group := range groups {
		bucket, bucketErr := repo.GetBucketForCategory(ctx, userID, group.ID)
		if bucketErr != nil {
			return nil, bucketErr
		}
		if bucket == nil || bucket.Fixed {
			continue
		}

		average, avgErr := expenseAverage(leaves[group.ID])
		if avgErr != nil {
			return nil, avgErr
		}
		if average.IsZero() {
			continue
		}

		line := Line{
			BucketID:     bucket.ID,
			CategoryID:   group.ID,
			CategoryName: bucket.CategoryName,
			Type:         group.Type,
			Average:      average,
			TypeAverage:  typeAverages[group.Type],
		}
		if !line.TypeAverage.IsZero() {
			line.LimitPercent = average.Div(line.TypeAverage)
		}

		ideal := report.IdealWant
		if group.Type == model.CategoryTypeNeed {
			ideal = report.IdealNeed
		}
		// The ratio is a fraction but is scaled down by 100 once more, as it always has been.
		// Limits are kept at cents like every other stored amount.
		line.Limit = ideal.Mul(line.LimitPercent).Div(hundred).Round(2)

		if preview {
			previewLine(&line, bucket)
		} else if err := e.apply(ctx, repo, &line, bucket, now); err != nil {
			return nil, err
		}

		report.Lines = append(report.Lines, line)
	}

	if !preview {
		if err := stampMonth(ctx, repo, userID, report.Month); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// previewLine fills in what apply would store without touching the bucket.
func previewLine(line *Line, bucket *model.BudgetBucket) {
	previous := bucket.Limitation
	line.Limitation = previous.Add(line.Limit)
	line.MaxLimit = bucket.MaxLimit.Add(line.Limitation).Add(line.Limitation.Mul(maxLimitRatio))

	if previous.IsZero() {
		line.PercentChange = PercentChangeNA
		return
	}
	line.PercentChange = line.Limitation.Sub(previous).Div(previous).Mul(hundred).Round(2).String()
}

// apply accumulates the limit into the bucket and refreshes the projections.
// MaxLimit grows by the full new limitation on every run.
func (e *Engine) apply(ctx context.Context, repo service.Repository, line *Line, bucket *model.BudgetBucket, now time.Time) error {
	bucket.Limitation = bucket.Limitation.Add(line.Limit)
	bucket.MaxLimit = bucket.MaxLimit.Add(bucket.Limitation).Add(bucket.Limitation.Mul(maxLimitRatio))
	if err := repo.UpdateBucket(ctx, bucket); err != nil {
		return err
	}
	line.Limitation = bucket.Limitation
	line.MaxLimit = bucket.MaxLimit

	for i := 1; i <= projectedMonths; i++ {
		projection := &model.ProjectedCategoryBudget{
			UserID:       bucket.UserID,
			CategoryID:   line.CategoryID,
			CategoryName: bucket.CategoryName,
			Month:        MonthName(now, i),
			Limitation:   line.Limit,
			MaxLimit:     line.Limit.Add(line.Limit.Mul(maxLimitRatio)),
		}
		if err := repo.UpsertProjection(ctx, projection); err != nil {
			return err
		}
	}

	e.logger.Debug("Updated bucket limit",
		"user_id", bucket.UserID,
		"bucket", bucket.CategoryName,
		"limit", line.Limit,
		"limitation", bucket.Limitation)
	return nil
}

// stampMonth records the month of the run on every bucket of the user.
func stampMonth(ctx context.Context, repo service.Repository, userID int64, month string) error {
	buckets, err := repo.ListBuckets(ctx, userID)
	if err != nil {
		return err
	}
	for i := range buckets {
		if buckets[i].Month == month {
			continue
		}
		buckets[i].Month = month
		if err := repo.UpdateBucket(ctx, &buckets[i]); err != nil {
			return err
		}
	}
	return nil
}

// MonthName returns the English name of the month offset months after now.
func MonthName(now time.Time, offset int) string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, offset, 0).Month().String()
}
