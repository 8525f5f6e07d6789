package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SpiritGreen/mushroom-checker-backend/api/responses"
	"github.com/SpiritGreen/mushroom-checker-backend/api/validators"
	"github.com/SpiritGreen/mushroom-checker-backend/internal/ledger"
	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
	"github.com/SpiritGreen/mushroom-checker-backend/pkg/logger"
)

type accountResponse struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Balance   string `json:"balance"`
	Disabled  bool   `json:"disabled"`
}

type transactionResponse struct {
	TransactionID string    `json:"transaction_id"`
	Amount        string    `json:"amount"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

type topupPayload struct {
	Amount string `json:"amount" validate:"required"`
}

// AccountGet returns the caller's balance.
func AccountGet(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		accountID, err := accountFromContext(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		account, err := svc.GetAccount(ctx, accountID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, accountResponse{
			AccountID: account.ID.String(),
			Email:     account.Email,
			Balance:   account.Balance.StringFixed(2),
			Disabled:  account.Disabled,
		})
	}
}

type transactionPage struct {
	Items      []transactionResponse `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// AccountTransactions returns one page of the caller's ledger history,
// newest first.
func AccountTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		accountID, err := accountFromContext(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, next, err := svc.ListTransactions(ctx, accountID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page := transactionPage{
			Items:      make([]transactionResponse, 0, len(list)),
			NextCursor: next,
		}
		for _, txn := range list {
			page.Items = append(page.Items, transactionResponse{
				TransactionID: txn.ID.String(),
				Amount:        txn.Amount.StringFixed(2),
				Description:   txn.Description,
				CreatedAt:     txn.CreatedAt,
			})
		}
		responses.WriteSuccess(w, page)
	}
}

// AccountTopup credits the caller's balance.
func AccountTopup(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		accountID, err := accountFromContext(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload topupPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "amount must be a decimal string"))
			return
		}
		if !amount.IsPositive() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive"))
			return
		}

		account, err := svc.Credit(ctx, accountID, amount, "account top-up")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, accountResponse{
			AccountID: account.ID.String(),
			Email:     account.Email,
			Balance:   account.Balance.StringFixed(2),
			Disabled:  account.Disabled,
		})
	}
}
