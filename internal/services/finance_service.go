package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dotproduct/internal/amqp"
	"dotproduct/internal/core"
	"dotproduct/internal/log"
)

// Repository is the entity store. Every method is scoped to userID and treats
// rows owned by anyone else as absent.
type Repository interface {
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	GetCategory(ctx context.Context, userID, id int64) (core.Category, error)
	ListCategories(ctx context.Context, userID int64, f core.CategoryFilter) ([]core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, userID, id int64) error

	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id int64) error

	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	GetBudget(ctx context.Context, userID, id int64) (core.Budget, error)
	ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error)
	UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	DeleteBudget(ctx context.Context, userID, id int64) error

	SumByKind(ctx context.Context, userID int64) (core.KindTotals, error)
	CategoryTotals(ctx context.Context, userID int64) ([]core.CategoryTotal, error)
	BudgetUsage(ctx context.Context, userID int64) ([]core.BudgetUsage, error)
}

// Publisher delivers domain events.
type Publisher interface {
	Publish(ctx context.Context, ev amqp.Event) error
}

// FinanceService orchestrates owner-scoped CRUD and aggregation across the
// entity store, and announces every change on the event publisher.
type FinanceService struct {
	repo      Repository
	publisher Publisher
	logger    *log.Logger
	records   *log.StructuredLogger
}

func NewFinanceService(repo Repository, publisher Publisher, logger *log.Logger) *FinanceService {
	if publisher == nil {
		publisher = amqp.NopPublisher{}
	}
	logger = logger.WithComponent(log.ComponentFinance)
	return &FinanceService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		records:   log.NewStructuredLogger(logger),
	}
}

// ---- categories ----

func (s *FinanceService) ListCategories(ctx context.Context, userID int64, f core.CategoryFilter) ([]core.Category, error) {
	categories, err := s.repo.ListCategories(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (s *FinanceService) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	c, err := s.repo.GetCategory(ctx, userID, id)
	if err != nil {
		return core.Category{}, translate(err, amqp.EntityCategory, id)
	}
	return c, nil
}

func (s *FinanceService) CreateCategory(ctx context.Context, userID int64, in core.CategoryInput) (core.Category, error) {
	if err := in.Validate(false); err != nil {
		return core.Category{}, err
	}
	c, err := s.repo.CreateCategory(ctx, core.Category{
		UserID: userID,
		Name:   strings.TrimSpace(*in.Name),
		Kind:   *in.Kind,
	})
	if err != nil {
		return core.Category{}, translate(err, amqp.EntityCategory, 0)
	}
	s.changed(ctx, userID, amqp.EntityCategory, amqp.ActionCreated, c.ID)
	return c, nil
}

// UpdateCategory applies in to the category. With partial set, absent fields
// keep their current value (PATCH); otherwise all fields are required (PUT).
func (s *FinanceService) UpdateCategory(ctx context.Context, userID, id int64, in core.CategoryInput, partial bool) (core.Category, error) {
	current, err := s.GetCategory(ctx, userID, id)
	if err != nil {
		return core.Category{}, err
	}
	if err := in.Validate(partial); err != nil {
		return core.Category{}, err
	}
	if in.Name != nil {
		current.Name = strings.TrimSpace(*in.Name)
	}
	if in.Kind != nil {
		current.Kind = *in.Kind
	}

	updated, err := s.repo.UpdateCategory(ctx, current)
	if err != nil {
		return core.Category{}, translate(err, amqp.EntityCategory, id)
	}
	s.changed(ctx, userID, amqp.EntityCategory, amqp.ActionUpdated, id)
	return updated, nil
}

// DeleteCategory removes the category. Its transactions survive uncategorized;
// its budgets are deleted.
func (s *FinanceService) DeleteCategory(ctx context.Context, userID, id int64) error {
	if err := s.repo.DeleteCategory(ctx, userID, id); err != nil {
		return translate(err, amqp.EntityCategory, id)
	}
	s.changed(ctx, userID, amqp.EntityCategory, amqp.ActionDeleted, id)
	return nil
}

// ---- transactions ----

func (s *FinanceService) ListTransactions(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	transactions, err := s.repo.ListTransactions(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}

func (s *FinanceService) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	t, err := s.repo.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, translate(err, amqp.EntityTransaction, id)
	}
	return t, nil
}

func (s *FinanceService) CreateTransaction(ctx context.Context, userID int64, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(false); err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{
		UserID: userID,
		Amount: *in.Amount,
		Date:   *in.Date,
		Kind:   *in.Kind,
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Category != nil && in.Category.Valid {
		t.CategoryID = &in.Category.ID
	}
	if err := s.checkTransactionCategory(ctx, userID, t); err != nil {
		return core.Transaction{}, err
	}

	created, err := s.repo.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, translate(err, amqp.EntityTransaction, 0)
	}
	s.changed(ctx, userID, amqp.EntityTransaction, amqp.ActionCreated, created.ID)
	return created, nil
}

// UpdateTransaction applies in to the transaction. The category/type
// agreement is checked on the resulting record.
func (s *FinanceService) UpdateTransaction(ctx context.Context, userID, id int64, in core.TransactionInput, partial bool) (core.Transaction, error) {
	current, err := s.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := in.Validate(partial); err != nil {
		return core.Transaction{}, err
	}

	if in.Category != nil {
		if in.Category.Valid {
			current.CategoryID = &in.Category.ID
		} else {
			current.CategoryID = nil
		}
	}
	if in.Amount != nil {
		current.Amount = *in.Amount
	}
	if in.Description != nil {
		current.Description = *in.Description
	}
	if in.Date != nil {
		current.Date = *in.Date
	}
	if in.Kind != nil {
		current.Kind = *in.Kind
	}
	if err := s.checkTransactionCategory(ctx, userID, current); err != nil {
		return core.Transaction{}, err
	}

	updated, err := s.repo.UpdateTransaction(ctx, current)
	if err != nil {
		return core.Transaction{}, translate(err, amqp.EntityTransaction, id)
	}
	s.changed(ctx, userID, amqp.EntityTransaction, amqp.ActionUpdated, id)
	return updated, nil
}

func (s *FinanceService) DeleteTransaction(ctx context.Context, userID, id int64) error {
	if err := s.repo.DeleteTransaction(ctx, userID, id); err != nil {
		return translate(err, amqp.EntityTransaction, id)
	}
	s.changed(ctx, userID, amqp.EntityTransaction, amqp.ActionDeleted, id)
	return nil
}

// checkTransactionCategory resolves t's category, if any, within the user's
// own categories and requires its type to equal the transaction's.
func (s *FinanceService) checkTransactionCategory(ctx context.Context, userID int64, t core.Transaction) error {
	if t.CategoryID == nil {
		return nil
	}
	c, err := s.ownedCategory(ctx, userID, *t.CategoryID)
	if err != nil {
		return err
	}
	if c.Kind != t.Kind {
		return core.NewValidationError("", fmt.Sprintf("Transaction type (%s) must match category type (%s)", t.Kind, c.Kind))
	}
	return nil
}

// ---- budgets ----

func (s *FinanceService) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	budgets, err := s.repo.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

func (s *FinanceService) GetBudget(ctx context.Context, userID, id int64) (core.Budget, error) {
	b, err := s.repo.GetBudget(ctx, userID, id)
	if err != nil {
		return core.Budget{}, translate(err, amqp.EntityBudget, id)
	}
	return b, nil
}

// CreateBudget stores a budget starting today. Period defaults to monthly.
func (s *FinanceService) CreateBudget(ctx context.Context, userID int64, in core.BudgetInput) (core.Budget, error) {
	if err := in.Validate(false); err != nil {
		return core.Budget{}, err
	}
	if _, err := s.ownedCategory(ctx, userID, *in.Category); err != nil {
		return core.Budget{}, err
	}

	b := core.Budget{
		UserID:     userID,
		CategoryID: *in.Category,
		Amount:     *in.Amount,
		Period:     core.PeriodMonthly,
	}
	if in.Period != nil {
		b.Period = *in.Period
	}

	created, err := s.repo.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, translate(err, amqp.EntityBudget, 0)
	}
	s.changed(ctx, userID, amqp.EntityBudget, amqp.ActionCreated, created.ID)
	return created, nil
}

func (s *FinanceService) UpdateBudget(ctx context.Context, userID, id int64, in core.BudgetInput, partial bool) (core.Budget, error) {
	current, err := s.GetBudget(ctx, userID, id)
	if err != nil {
		return core.Budget{}, err
	}
	if err := in.Validate(partial); err != nil {
		return core.Budget{}, err
	}
	if in.Category != nil {
		if _, err := s.ownedCategory(ctx, userID, *in.Category); err != nil {
			return core.Budget{}, err
		}
		current.CategoryID = *in.Category
	}
	if in.Amount != nil {
		current.Amount = *in.Amount
	}
	if in.Period != nil {
		current.Period = *in.Period
	}

	updated, err := s.repo.UpdateBudget(ctx, current)
	if err != nil {
		return core.Budget{}, translate(err, amqp.EntityBudget, id)
	}
	s.changed(ctx, userID, amqp.EntityBudget, amqp.ActionUpdated, id)
	return updated, nil
}

func (s *FinanceService) DeleteBudget(ctx context.Context, userID, id int64) error {
	if err := s.repo.DeleteBudget(ctx, userID, id); err != nil {
		return translate(err, amqp.EntityBudget, id)
	}
	s.changed(ctx, userID, amqp.EntityBudget, amqp.ActionDeleted, id)
	return nil
}

// ---- helpers ----

// ownedCategory loads a referenced category. Unknown ids and other users'
// ids are reported identically as an invalid reference.
func (s *FinanceService) ownedCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	c, err := s.repo.GetCategory(ctx, userID, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Category{}, core.NewValidationError("category", `Invalid pk "`+strconv.FormatInt(id, 10)+`" - object does not exist.`)
		}
		return core.Category{}, fmt.Errorf("load category %d: %w", id, err)
	}
	return c, nil
}

// changed logs a successful write and publishes its event. Publishing
// failures never fail the request.
func (s *FinanceService) changed(ctx context.Context, userID int64, entity, action string, id int64) {
	s.records.LogEntityChanged(ctx, userID, entity, id, strings.TrimSuffix(action, "d"))

	if err := s.publisher.Publish(ctx, amqp.NewEvent(entity, action, userID, id)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish domain event",
			"type", entity+"."+action,
			log.FieldEntityID, id,
			log.FieldError, err)
	}
}

// translate maps storage sentinels onto the error taxonomy.
func translate(err error, entity string, id int64) error {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return &core.NotFoundError{Entity: entity, ID: id}
	case errors.Is(err, core.ErrDuplicate):
		return core.NewValidationError("", "Category with this name and type already exists.")
	}
	return fmt.Errorf("%s: %w", entity, err)
}
