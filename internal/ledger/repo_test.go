package ledger

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/SpiritGreen/mushroom-checker-backend/pkg/db/models"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/pagination"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("MUSHCHECK_DB_DSN")
	if dsn == "" {
		t.Skip("MUSHCHECK_DB_DSN is not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return conn
}

func mustCreateTestAccount(t *testing.T, tx *gorm.DB, balance string) *models.Account {
	t.Helper()
	account := &models.Account{
		ID:      uuid.New(),
		Email:   fmt.Sprintf("mc_test_%s@example.com", uuid.NewString()),
		Balance: decimal.RequireFromString(balance),
	}
	if err := tx.Create(account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func TestRepositoryDebitFlow(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	account := mustCreateTestAccount(t, tx, "10.00")

	affected, err := repo.DebitBalance(ctx, account.ID, decimal.RequireFromString("3.00"))
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 row affected, got %d", affected)
	}

	fetched, err := repo.FindAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if !fetched.Balance.Equal(decimal.RequireFromString("7.00")) {
		t.Fatalf("expected balance 7.00, got %s", fetched.Balance)
	}

	// Overdraft must match zero rows, leaving the balance untouched.
	affected, err = repo.DebitBalance(ctx, account.ID, decimal.RequireFromString("100.00"))
	if err != nil {
		t.Fatalf("overdraft debit: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected 0 rows affected for overdraft, got %d", affected)
	}

	fetched, err = repo.FindAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("find account after overdraft: %v", err)
	}
	if !fetched.Balance.Equal(decimal.RequireFromString("7.00")) {
		t.Fatalf("overdraft changed balance to %s", fetched.Balance)
	}
}

func TestRepositoryDebitSkipsDisabledAccounts(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	account := mustCreateTestAccount(t, tx, "10.00")
	if err := tx.Model(&models.Account{}).Where("id = ?", account.ID).Update("disabled", true).Error; err != nil {
		t.Fatalf("disable account: %v", err)
	}

	affected, err := repo.DebitBalance(ctx, account.ID, decimal.RequireFromString("1.00"))
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected disabled account to match 0 rows, got %d", affected)
	}
}

func TestRepositoryCreditAndTransactionLog(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	account := mustCreateTestAccount(t, tx, "0.00")

	affected, err := repo.CreditBalance(ctx, account.ID, decimal.RequireFromString("5.50"))
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 row affected, got %d", affected)
	}

	for i := 0; i < 3; i++ {
		txn := &models.Transaction{
			ID:          uuid.New(),
			AccountID:   account.ID,
			Amount:      decimal.RequireFromString("-1.00"),
			Description: fmt.Sprintf("prediction charge %d", i),
		}
		if err := repo.CreateTransaction(ctx, txn); err != nil {
			t.Fatalf("create transaction %d: %v", i, err)
		}
	}

	page, err := repo.ListTransactions(ctx, account.ID, 2, nil)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}

	cursor := &pagination.Cursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID}
	rest, err := repo.ListTransactions(ctx, account.ID, 2, cursor)
	if err != nil {
		t.Fatalf("list transactions after cursor: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("expected 1 remaining transaction, got %d", len(rest))
	}
	for _, txn := range page {
		if txn.ID == rest[0].ID {
			t.Fatal("cursor page repeated a transaction")
		}
	}
}
