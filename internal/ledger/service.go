package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db/models"
	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns every balance mutation. A debit and its transaction line are
// always written in the same database transaction, so the ledger can be
// reconciled against the balance at any point.
type Service interface {
	// DebitTx charges the account inside the caller's transaction. The debit
	// is conditional on sufficient funds and an enabled account; it is
	// rejected, never clamped.
	DebitTx(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, amount decimal.Decimal, description string) error
	Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, description string) (*models.Account, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	// ListTransactions returns one page of the account's ledger lines, newest
	// first, plus the cursor for the next page ("" on the last page).
	ListTransactions(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error)
}

type service struct {
	tx   txRunner
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(tx txRunner, repo Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{tx: tx, repo: repo}, nil
}

func (s *service) DebitTx(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, amount decimal.Decimal, description string) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if accountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "debit amount must be positive")
	}

	repo := s.repo.WithTx(tx)

	affected, err := repo.DebitBalance(ctx, accountID, amount)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit balance")
	}
	if affected == 0 {
		return s.classifyRejectedDebit(ctx, repo, accountID)
	}

	txn := &models.Transaction{
		AccountID:   accountID,
		Amount:      amount.Neg(),
		Description: description,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record debit transaction")
	}
	return nil
}

// classifyRejectedDebit turns a zero-row debit into the precise failure the
// caller should report.
func (s *service) classifyRejectedDebit(ctx context.Context, repo Repository, accountID uuid.UUID) error {
	account, err := repo.FindAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	if account.Disabled {
		return pkgerrors.New(pkgerrors.CodeForbidden, "account is disabled")
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "balance is below the model cost")
}

func (s *service) Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, description string) (*models.Account, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}

	var account *models.Account
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		affected, err := repo.CreditBalance(ctx, accountID, amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit balance")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}

		txn := &models.Transaction{
			AccountID:   accountID,
			Amount:      amount,
			Description: description,
		}
		if err := repo.CreateTransaction(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record credit transaction")
		}

		account, err = repo.FindAccount(ctx, accountID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *service) GetAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	account, err := s.repo.FindAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return account, nil
}

func (s *service) ListTransactions(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error) {
	if accountID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	txns, err := s.repo.ListTransactions(ctx, accountID, limit+1, cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	txns, next := pagination.TrimPage(txns, limit, func(t models.Transaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	return txns, next, nil
}
