// Package notify turns bucket spend levels into user notifications and
// optionally fans them out to a message broker.
package notify

import (
	"log/slog"
	"time"

	"github.com/Veraticus/finwiz/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Template is the title and message appended after the bucket's category name.
type Template struct {
	Title   string
	Message string
}

// DefaultTemplates returns the built-in wording for every band.
func DefaultTemplates() map[model.Band]Template {
	return map[model.Band]Template{
		model.BandFifty: {
			Title:   "budget is half spent",
			Message: "spending has reached 50% of this month's limit.",
		},
		model.BandSeventyFive: {
			Title:   "budget is 75% spent",
			Message: "spending has reached 75% of this month's limit.",
		},
		model.BandNinety: {
			Title:   "budget is almost spent",
			Message: "spending has reached 90% of this month's limit.",
		},
		model.BandHundred: {
			Title:   "budget limit reached",
			Message: "spending has reached or passed this month's limit.",
		},
	}
}

// Options configures an Emitter.
type Options struct {
	// Templates overrides the default wording per band. Missing bands keep the default.
	Templates map[model.Band]Template
	// Dedupe suppresses a notification when the bucket was already notified for the same band.
	Dedupe bool
}

// Emitter decides which notification, if any, a bucket update produces.
type Emitter struct {
	templates map[model.Band]Template
	logger    *slog.Logger
	now       func() time.Time
	dedupe    bool
}

// NewEmitter creates an emitter.
func NewEmitter(opts Options) *Emitter {
	templates := DefaultTemplates()
	for band, tmpl := range opts.Templates {
		templates[band] = tmpl
	}
	return &Emitter{
		templates: templates,
		dedupe:    opts.Dedupe,
		logger:    slog.Default().With("component", "notify"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var (
	fifty       = decimal.NewFromInt(50)
	seventyFive = decimal.NewFromInt(75)
	ninety      = decimal.NewFromInt(90)
	oneHundred  = decimal.NewFromInt(100)
)

// BandFor returns the band that spent falls into for the given limit.
// The checks run in order and the first match wins.
func BandFor(limitation, spent decimal.Decimal) model.Band {
	p50 := limitation.Mul(fifty).Div(oneHundred)
	p75 := limitation.Mul(seventyFive).Div(oneHundred)
	p90 := limitation.Mul(ninety).Div(oneHundred)
	p100 := limitation

	s := spent
	switch {
	case p50.LessThanOrEqual(s) && p75.GreaterThan(s) && p90.GreaterThan(s) && p100.GreaterThan(s):
		return model.BandFifty
	case p50.LessThan(s) && p75.LessThanOrEqual(s) && p90.GreaterThan(s) && p100.GreaterThan(s):
		return model.BandSeventyFive
	case p50.LessThan(s) && p75.LessThan(s) && p90.LessThanOrEqual(s) && p100.GreaterThan(s):
		return model.BandNinety
	case p50.LessThan(s) && p75.LessThan(s) && p90.LessThan(s) && p100.LessThanOrEqual(s):
		return model.BandHundred
	default:
		return model.BandNone
	}
}

// Evaluate returns the notification a bucket update produces, or nil.
// The bucket's manual spending is compared against its limitation. The bucket's
// LastNotifiedBand is updated, so callers must persist the bucket afterwards.
func (e *Emitter) Evaluate(bucket *model.BudgetBucket) *model.Notification {
	if bucket == nil {
		return nil
	}

	band := BandFor(bucket.Limitation, bucket.ManualSpending)
	previous := bucket.LastNotifiedBand
	bucket.LastNotifiedBand = band

	if band == model.BandNone {
		return nil
	}
	if e.dedupe && band == previous {
		e.logger.Debug("suppressing repeated notification",
			"user_id", bucket.UserID,
			"bucket_id", bucket.ID,
			"band", band)
		return nil
	}

	tmpl := e.templates[band]
	return &model.Notification{
		ID:        uuid.NewString(),
		UserID:    bucket.UserID,
		BucketID:  bucket.ID,
		Band:      band,
		Title:     bucket.CategoryName + " " + tmpl.Title,
		Message:   bucket.CategoryName + " " + tmpl.Message,
		CreatedAt: e.now(),
	}
}
