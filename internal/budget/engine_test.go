package budget

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/Veraticus/finwiz/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.April, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	db      *testutil.TestDB
	engine  *Engine
	user    *model.User
	account *model.Account
}

func newFixture(t *testing.T, config Config) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t, testutil.GroupFood, testutil.GroupTravel, testutil.GroupIncome)
	user := db.CreateUser("budget@example.com")

	engine := NewWithConfig(db.Storage, common.NewUserLocks(), config)
	engine.now = func() time.Time { return testNow }

	return &fixture{
		db:      db,
		engine:  engine,
		user:    user,
		account: db.CreateAccount(user.ID, "acc-1", "depository", "checking"),
	}
}

func (f *fixture) addTxn(t *testing.T, id, amount, leaf string, date time.Time) {
	t.Helper()
	categoryID := f.db.MustGetCategory(leaf).ID
	_, _, _, err := f.db.Storage.UpsertTransaction(context.Background(), &model.Transaction{
		UserID:                f.user.ID,
		AccountID:             f.account.ID,
		ProviderTransactionID: id,
		Amount:                decimal.RequireFromString(amount),
		Date:                  date,
		CategoryID:            &categoryID,
	})
	require.NoError(t, err)
}

func march(day int) time.Time {
	return time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, what string) {
	t.Helper()
	assert.True(t, got.Equal(decimal.RequireFromString(want)), "%s = %s, want %s", what, got, want)
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		months    int
		wantStart string
		wantEnd   string
	}{
		{"one month", testNow, 1, "2024-03-01", "2024-03-31"},
		{"three months", testNow, 3, "2024-01-01", "2024-03-31"},
		{"across year", time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC), 2, "2023-11-01", "2023-12-31"},
		{"leap february", time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC), 1, "2024-02-01", "2024-02-29"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := Window(tt.now, tt.months)
			assert.Equal(t, tt.wantStart, start.Format("2006-01-02"))
			assert.Equal(t, tt.wantEnd, end.Format("2006-01-02"))
		})
	}
}

func TestMonthName(t *testing.T) {
	jan31 := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "February", MonthName(jan31, 1))
	assert.Equal(t, "March", MonthName(jan31, 2))
	assert.Equal(t, "January", MonthName(time.Date(2024, time.November, 30, 0, 0, 0, 0, time.UTC), 2))
}

func TestEngine_Project(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	bucket := f.db.CreateBucket(f.user.ID, "Travel", decimal.Zero)

	f.addTxn(t, "pay", "3000", "Payroll", march(1))
	f.addTxn(t, "taxi", "-100", "Taxi", march(12))
	// Outside the window.
	f.addTxn(t, "april", "-999", "Taxi", time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC))

	report, err := f.engine.Project(context.Background(), f.user.ID, false)
	require.NoError(t, err)

	assertDecimal(t, "3000", report.Income, "income")
	assertDecimal(t, "1500", report.IdealNeed, "ideal need")
	assert.Equal(t, "April", report.Month)
	require.Len(t, report.Lines, 1)

	line := report.Lines[0]
	assertDecimal(t, "100", line.Average, "average")
	assertDecimal(t, "1", line.LimitPercent, "limit percent")
	assertDecimal(t, "15", line.Limit, "limit")
	assertDecimal(t, "15", line.Limitation, "limitation")
	assertDecimal(t, "21.75", line.MaxLimit, "max limit")

	stored := f.db.MustGetBucket(bucket.ID)
	assertDecimal(t, "15", stored.Limitation, "stored limitation")
	assertDecimal(t, "21.75", stored.MaxLimit, "stored max limit")
	assert.Equal(t, "April", stored.Month)

	projections, err := f.db.Storage.ListProjections(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, projections, 2)
	months := []string{projections[0].Month, projections[1].Month}
	assert.ElementsMatch(t, []string{"May", "June"}, months)
	for _, p := range projections {
		assertDecimal(t, "15", p.Limitation, "projected limitation")
		assertDecimal(t, "21.75", p.MaxLimit, "projected max limit")
		assert.Equal(t, "Travel", p.CategoryName)
	}
}

func TestEngine_ProjectAccumulates(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	bucket := f.db.CreateBucket(f.user.ID, "Travel", decimal.Zero)
	f.addTxn(t, "pay", "3000", "Payroll", march(1))
	f.addTxn(t, "taxi", "-100", "Taxi", march(12))

	_, err := f.engine.Project(context.Background(), f.user.ID, false)
	require.NoError(t, err)
	_, err = f.engine.Project(context.Background(), f.user.ID, false)
	require.NoError(t, err)

	stored := f.db.MustGetBucket(bucket.ID)
	assertDecimal(t, "30", stored.Limitation, "limitation")
	// 21.75 + 30 + 13.5
	assertDecimal(t, "65.25", stored.MaxLimit, "max limit")

	projections, err := f.db.Storage.ListProjections(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Len(t, projections, 2)
	for _, p := range projections {
		assertDecimal(t, "15", p.Limitation, "projected limitation")
	}
}

func TestEngine_ProjectSplitsByType(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	food := f.db.CreateBucket(f.user.ID, "Food and Drink", decimal.Zero)
	travel := f.db.CreateBucket(f.user.ID, "Travel", decimal.Zero)

	f.addTxn(t, "pay", "1000", "Payroll", march(1))
	f.addTxn(t, "dinner", "-300", "Restaurants", march(5))
	f.addTxn(t, "coffee", "-100", "Coffee Shop", march(6))
	f.addTxn(t, "flight", "-200", "Airlines and Aviation Services", march(7))

	report, err := f.engine.Project(context.Background(), f.user.ID, false)
	require.NoError(t, err)
	require.Len(t, report.Lines, 2)

	// Food is the only want group: 300 ideal want scaled by 400/400.
	assertDecimal(t, "3", f.db.MustGetBucket(food.ID).Limitation, "food limitation")
	// Travel is the only need group with expenses: 500 ideal need scaled by 200/200.
	assertDecimal(t, "5", f.db.MustGetBucket(travel.ID).Limitation, "travel limitation")
}

func TestEngine_ProjectSkips(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	fixed := f.db.CreateBucket(f.user.ID, "Food and Drink", decimal.NewFromInt(50))
	fixed.Fixed = true
	require.NoError(t, f.db.Storage.UpdateBucket(context.Background(), fixed))
	quiet := f.db.CreateBucket(f.user.ID, "Travel", decimal.NewFromInt(20))

	f.addTxn(t, "pay", "1000", "Payroll", march(1))
	f.addTxn(t, "dinner", "-300", "Restaurants", march(5))

	report, err := f.engine.Project(context.Background(), f.user.ID, false)
	require.NoError(t, err)
	assert.Empty(t, report.Lines)

	assertDecimal(t, "50", f.db.MustGetBucket(fixed.ID).Limitation, "fixed limitation")
	assertDecimal(t, "20", f.db.MustGetBucket(quiet.ID).Limitation, "quiet limitation")

	projections, err := f.db.Storage.ListProjections(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, projections)
}

func TestEngine_ProjectNoIncome(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	bucket := f.db.CreateBucket(f.user.ID, "Travel", decimal.NewFromInt(10))
	f.addTxn(t, "taxi", "-100", "Taxi", march(12))

	report, err := f.engine.Project(context.Background(), f.user.ID, false)
	require.NoError(t, err)
	require.Len(t, report.Lines, 1)
	assertDecimal(t, "0", report.Lines[0].Limit, "limit")
	assertDecimal(t, "10", f.db.MustGetBucket(bucket.ID).Limitation, "limitation")
}

func TestEngine_Preview(t *testing.T) {
	tests := []struct {
		name          string
		limitation    int64
		wantLimit     string
		wantMax       string
		wantPctChange string
	}{
		{"no prior limitation", 0, "15", "21.75", PercentChangeNA},
		{"prior limitation", 100, "115", "166.75", "15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DefaultConfig())
			bucket := f.db.CreateBucket(f.user.ID, "Travel", decimal.NewFromInt(tt.limitation))
			f.addTxn(t, "pay", "3000", "Payroll", march(1))
			f.addTxn(t, "taxi", "-100", "Taxi", march(12))

			report, err := f.engine.Project(context.Background(), f.user.ID, true)
			require.NoError(t, err)
			assert.True(t, report.Preview)
			require.Len(t, report.Lines, 1)

			line := report.Lines[0]
			assertDecimal(t, tt.wantLimit, line.Limitation, "projected limitation")
			assertDecimal(t, tt.wantMax, line.MaxLimit, "projected max limit")
			assert.Equal(t, tt.wantPctChange, line.PercentChange)

			stored := f.db.MustGetBucket(bucket.ID)
			assertDecimal(t, decimal.NewFromInt(tt.limitation).String(), stored.Limitation, "stored limitation")
			assert.Empty(t, stored.Month)

			projections, err := f.db.Storage.ListProjections(context.Background(), f.user.ID)
			require.NoError(t, err)
			assert.Empty(t, projections)
		})
	}
}

func TestEngine_WindowMonths(t *testing.T) {
	config := DefaultConfig()
	config.WindowMonths = 2
	f := newFixture(t, config)
	f.db.CreateBucket(f.user.ID, "Travel", decimal.Zero)

	f.addTxn(t, "pay-feb", "1500", "Payroll", time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC))
	f.addTxn(t, "pay-mar", "1500", "Payroll", march(1))
	f.addTxn(t, "taxi-feb", "-60", "Taxi", time.Date(2024, time.February, 20, 0, 0, 0, 0, time.UTC))
	f.addTxn(t, "taxi-mar", "-40", "Taxi", march(20))

	report, err := f.engine.Project(context.Background(), f.user.ID, true)
	require.NoError(t, err)
	assertDecimal(t, "3000", report.Income, "income")
	require.Len(t, report.Lines, 1)
	assertDecimal(t, "50", report.Lines[0].Average, "average")
	assertDecimal(t, "15", report.Lines[0].Limit, "limit")
}

func TestEngine_UnknownUser(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	_, err := f.engine.Project(context.Background(), 424242, false)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero window", func(c *Config) { c.WindowMonths = 0 }, true},
		{"negative need", func(c *Config) { c.NeedPercent = decimal.NewFromInt(-1) }, true},
		{"want over 100", func(c *Config) { c.WantPercent = decimal.NewFromInt(101) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
