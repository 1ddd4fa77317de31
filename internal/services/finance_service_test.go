package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dotproduct/internal/amqp"
	"dotproduct/internal/core"
	"dotproduct/internal/log"
	"dotproduct/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev amqp.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	svc   *FinanceService
	repo  *storage.SQLiteRepository
	pub   *recordingPublisher
	alice int64
	bob   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "finance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	tick := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})

	ctx := context.Background()
	alice, err := repo.CreateUser(ctx, core.NewUser{Username: "alice", Email: "alice@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	bob, err := repo.CreateUser(ctx, core.NewUser{Username: "bob", Email: "bob@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	return &fixture{
		svc:   NewFinanceService(repo, pub, log.New(log.DefaultConfig())),
		repo:  repo,
		pub:   pub,
		alice: alice.ID,
		bob:   bob.ID,
	}
}

func ptr[T any](v T) *T { return &v }

func money(cents int64) *core.Money { return &core.Money{Cents: cents} }

func (f *fixture) category(t *testing.T, userID int64, name string, kind core.Kind) core.Category {
	t.Helper()
	c, err := f.svc.CreateCategory(context.Background(), userID, core.CategoryInput{Name: ptr(name), Kind: ptr(kind)})
	require.NoError(t, err)
	return c
}

func (f *fixture) transaction(t *testing.T, userID int64, categoryID *int64, cents int64, kind core.Kind, date core.Date) core.Transaction {
	t.Helper()
	in := core.TransactionInput{Amount: money(cents), Kind: ptr(kind), Date: ptr(date)}
	if categoryID != nil {
		in.Category = &core.NullableID{ID: *categoryID, Valid: true}
	}
	tx, err := f.svc.CreateTransaction(context.Background(), userID, in)
	require.NoError(t, err)
	return tx
}

func TestCategoryLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	c := f.category(t, f.alice, "  Salary ", core.KindIncome)
	assert.Equal(t, "Salary", c.Name)
	assert.Equal(t, f.alice, c.UserID)

	_, err := f.svc.CreateCategory(ctx, f.alice, core.CategoryInput{Name: ptr("Salary"), Kind: ptr(core.KindIncome)})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)

	// Same triple for another owner is allowed.
	f.category(t, f.bob, "Salary", core.KindIncome)

	updated, err := f.svc.UpdateCategory(ctx, f.alice, c.ID, core.CategoryInput{Name: ptr("Wages")}, true)
	require.NoError(t, err)
	assert.Equal(t, "Wages", updated.Name)
	assert.Equal(t, core.KindIncome, updated.Kind)

	_, err = f.svc.UpdateCategory(ctx, f.alice, c.ID, core.CategoryInput{Name: ptr("Only name")}, false)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "type", verr.Field)

	require.NoError(t, f.svc.DeleteCategory(ctx, f.alice, c.ID))
	_, err = f.svc.GetCategory(ctx, f.alice, c.ID)
	var nf *core.NotFoundError
	assert.ErrorAs(t, err, &nf)

	assert.Equal(t, []string{"category.created", "category.created", "category.updated", "category.deleted"}, f.pub.types())
}

func TestCrossUserAccessIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.category(t, f.alice, "Food", core.KindExpense)
	tx := f.transaction(t, f.alice, &c.ID, 1000, core.KindExpense, core.NewDate(2025, 3, 2))
	b, err := f.svc.CreateBudget(ctx, f.alice, core.BudgetInput{Category: &c.ID, Amount: money(5000)})
	require.NoError(t, err)

	var nf *core.NotFoundError
	_, err = f.svc.GetCategory(ctx, f.bob, c.ID)
	assert.ErrorAs(t, err, &nf)
	_, err = f.svc.GetTransaction(ctx, f.bob, tx.ID)
	assert.ErrorAs(t, err, &nf)
	_, err = f.svc.GetBudget(ctx, f.bob, b.ID)
	assert.ErrorAs(t, err, &nf)

	_, err = f.svc.UpdateTransaction(ctx, f.bob, tx.ID, core.TransactionInput{Description: ptr("mine")}, true)
	assert.ErrorAs(t, err, &nf)
	assert.ErrorAs(t, f.svc.DeleteBudget(ctx, f.bob, b.ID), &nf)
	assert.ErrorAs(t, f.svc.DeleteCategory(ctx, f.bob, c.ID), &nf)

	list, err := f.svc.ListTransactions(ctx, f.bob, core.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTransactionCategoryRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	food := f.category(t, f.alice, "Food", core.KindExpense)
	bobs := f.category(t, f.bob, "Bob food", core.KindExpense)

	_, err := f.svc.CreateTransaction(ctx, f.alice, core.TransactionInput{
		Category: &core.NullableID{ID: food.ID, Valid: true},
		Amount:   money(1000),
		Kind:     ptr(core.KindIncome),
		Date:     ptr(core.NewDate(2025, 3, 2)),
	})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Transaction type (income) must match category type (expense)", verr.Message)

	_, err = f.svc.CreateTransaction(ctx, f.alice, core.TransactionInput{
		Category: &core.NullableID{ID: bobs.ID, Valid: true},
		Amount:   money(1000),
		Kind:     ptr(core.KindExpense),
		Date:     ptr(core.NewDate(2025, 3, 2)),
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "category", verr.Field)
	assert.Contains(t, verr.Message, "object does not exist")

	tx := f.transaction(t, f.alice, &food.ID, 1000, core.KindExpense, core.NewDate(2025, 3, 2))

	// Flipping only the type must still agree with the stored category.
	_, err = f.svc.UpdateTransaction(ctx, f.alice, tx.ID, core.TransactionInput{Kind: ptr(core.KindIncome)}, true)
	require.ErrorAs(t, err, &verr)

	// Clearing the category and changing type together is fine.
	updated, err := f.svc.UpdateTransaction(ctx, f.alice, tx.ID, core.TransactionInput{
		Category: &core.NullableID{},
		Kind:     ptr(core.KindIncome),
	}, true)
	require.NoError(t, err)
	assert.Nil(t, updated.CategoryID)
	assert.Equal(t, core.KindIncome, updated.Kind)
	assert.Equal(t, int64(1000), updated.Amount.Cents)
}

func TestPutRequiresAllFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tx := f.transaction(t, f.alice, nil, 1000, core.KindExpense, core.NewDate(2025, 3, 2))

	_, err := f.svc.UpdateTransaction(ctx, f.alice, tx.ID, core.TransactionInput{Amount: money(5)}, false)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)

	updated, err := f.svc.UpdateTransaction(ctx, f.alice, tx.ID, core.TransactionInput{
		Amount: money(5),
		Kind:   ptr(core.KindIncome),
		Date:   ptr(core.NewDate(2025, 1, 1)),
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", updated.Date.String())
}

func TestDeleteCategoryCascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	food := f.category(t, f.alice, "Food", core.KindExpense)
	tx := f.transaction(t, f.alice, &food.ID, 1000, core.KindExpense, core.NewDate(2025, 3, 2))
	b, err := f.svc.CreateBudget(ctx, f.alice, core.BudgetInput{Category: &food.ID, Amount: money(20000)})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteCategory(ctx, f.alice, food.ID))

	kept, err := f.svc.GetTransaction(ctx, f.alice, tx.ID)
	require.NoError(t, err)
	assert.Nil(t, kept.CategoryID)

	var nf *core.NotFoundError
	_, err = f.svc.GetBudget(ctx, f.alice, b.ID)
	assert.ErrorAs(t, err, &nf)
}

func TestBudgets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	food := f.category(t, f.alice, "Food", core.KindExpense)
	rent := f.category(t, f.alice, "Rent", core.KindExpense)

	b, err := f.svc.CreateBudget(ctx, f.alice, core.BudgetInput{Category: &food.ID, Amount: money(20000)})
	require.NoError(t, err)
	assert.Equal(t, core.PeriodMonthly, b.Period)
	assert.Equal(t, "2025-03-01", b.StartDate.String())

	updated, err := f.svc.UpdateBudget(ctx, f.alice, b.ID, core.BudgetInput{Category: &rent.ID, Period: ptr(core.PeriodWeekly)}, true)
	require.NoError(t, err)
	assert.Equal(t, rent.ID, updated.CategoryID)
	assert.Equal(t, "Rent", updated.CategoryName)
	assert.Equal(t, core.PeriodWeekly, updated.Period)

	missing := int64(9999)
	_, err = f.svc.CreateBudget(ctx, f.alice, core.BudgetInput{Category: &missing, Amount: money(1)})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, `Invalid pk "9999" - object does not exist.`, verr.Message)
}

func TestFinancialSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	empty, err := f.svc.FinancialSummary(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, core.FinancialSummary{}, empty)

	d := core.NewDate(2025, 3, 2)
	f.transaction(t, f.alice, nil, 10000, core.KindIncome, d)
	f.transaction(t, f.alice, nil, 4000, core.KindExpense, d)
	f.transaction(t, f.alice, nil, 1000, core.KindExpense, d)
	f.transaction(t, f.bob, nil, 99999, core.KindIncome, d)

	sum, err := f.svc.FinancialSummary(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, "100.00", sum.TotalIncome.String())
	assert.Equal(t, "50.00", sum.TotalExpenses.String())
	assert.Equal(t, "50.00", sum.Balance.String())
}

func TestCategorySummarySortedByTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	food := f.category(t, f.alice, "Food", core.KindExpense)
	salary := f.category(t, f.alice, "Salary", core.KindIncome)
	d := core.NewDate(2025, 3, 2)
	f.transaction(t, f.alice, &food.ID, 2000, core.KindExpense, d)
	f.transaction(t, f.alice, &food.ID, 3000, core.KindExpense, d)
	f.transaction(t, f.alice, &salary.ID, 1000, core.KindIncome, d)

	summary, err := f.svc.CategorySummary(ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "Food", *summary[0].CategoryName)
	assert.Equal(t, int64(5000), summary[0].Total.Cents)
	assert.Equal(t, "Salary", *summary[1].CategoryName)
}

func TestBudgetStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	food := f.category(t, f.alice, "Food", core.KindExpense)
	_, err := f.svc.CreateBudget(ctx, f.alice, core.BudgetInput{Category: &food.ID, Amount: money(20000)})
	require.NoError(t, err)

	f.transaction(t, f.alice, &food.ID, 5000, core.KindExpense, core.NewDate(2025, 3, 1))
	f.transaction(t, f.alice, &food.ID, 2500, core.KindExpense, core.NewDate(2025, 4, 20))
	f.transaction(t, f.alice, &food.ID, 7000, core.KindExpense, core.NewDate(2025, 2, 1))

	status, err := f.svc.BudgetStatus(ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Equal(t, "Food", status[0].Category)
	assert.Equal(t, "200.00", status[0].BudgetedAmount.String())
	assert.Equal(t, "75.00", status[0].ActualAmount.String())
	assert.Equal(t, "125.00", status[0].Remaining.String())
	assert.Equal(t, "Monthly", status[0].Period)

	f.transaction(t, f.alice, &food.ID, 20000, core.KindExpense, core.NewDate(2025, 5, 1))
	status, err = f.svc.BudgetStatus(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, "-75.00", status[0].Remaining.String())
}

func TestPublishFailureDoesNotFailWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	c, err := f.svc.CreateCategory(ctx, f.alice, core.CategoryInput{Name: ptr("Food"), Kind: ptr(core.KindExpense)})
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	assert.Equal(t, []string{"category.created"}, f.pub.types())
}

func TestNilPublisherDefaultsToNop(t *testing.T) {
	f := newFixture(t)
	svc := NewFinanceService(f.repo, nil, log.New(log.DefaultConfig()))
	_, err := svc.CreateCategory(context.Background(), f.alice, core.CategoryInput{Name: ptr("Gifts"), Kind: ptr(core.KindIncome)})
	assert.NoError(t, err)
}
