// Package accountdelivery manages delivery layer of accounts.
package accountdelivery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/clever-bank/internal/accountservice"
	"github.com/go-petr/clever-bank/internal/domain"
	"github.com/go-petr/clever-bank/pkg/errorspkg"
	"github.com/go-petr/clever-bank/pkg/jsonresponse"
	"github.com/go-petr/clever-bank/pkg/moneypkg"
)

// Service provides service layer interface needed by account delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package accountdelivery
type Service interface {
	Get(ctx context.Context, id int64) (domain.Account, error)
	Statement(ctx context.Context, id int64, since time.Time) (domain.Account, []domain.Transaction, error)
}

// Mutator provides balance operations needed by account delivery layer.
type Mutator interface {
	Replenish(ctx context.Context, accountID int64, amount decimal.Decimal) (domain.Transaction, error)
	Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (domain.Transaction, error)
}

// Handler facilitates account delivery layer logic.
type Handler struct {
	service Service
	mutator Mutator
	now     func() time.Time
}

// NewHandler returns account handler.
func NewHandler(as Service, m Mutator) *Handler {
	return &Handler{
		service: as,
		mutator: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type uriRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

type accountData struct {
	Account domain.Account `json:"account"`
}

// Get handles http request to get account.
func (h *Handler) Get(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req uriRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, jsonresponse.BindingError(err))

		return
	}

	acc, err := h.service.Get(ctx, req.ID)
	if err != nil {
		respondError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, jsonresponse.Response{Data: accountData{acc}})
}

type statementRequest struct {
	Period string `form:"period" binding:"omitempty,oneof=month year all"`
	Since  string `form:"since"`
}

type statementData struct {
	Account      domain.Account       `json:"account"`
	Since        *time.Time           `json:"since,omitempty"`
	Transactions []domain.Transaction `json:"transactions"`
}

// Statement handles http request to list ledger entries of the account made
// since the start of the requested period or the given instant.
func (h *Handler) Statement(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var uri uriRequest
	if err := gctx.ShouldBindUri(&uri); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, jsonresponse.BindingError(err))

		return
	}

	var req statementRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, jsonresponse.BindingError(err))

		return
	}

	since, err := h.since(req)
	if err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, jsonresponse.Error(err))

		return
	}

	acc, txs, err := h.service.Statement(ctx, uri.ID, since)
	if err != nil {
		respondError(gctx, err)
		return
	}

	data := statementData{
		Account:      acc,
		Transactions: txs,
	}
	if !since.IsZero() {
		data.Since = &since
	}

	gctx.JSON(http.StatusOK, jsonresponse.Response{Data: data})
}

var errPeriodAndSince = errors.New("period and since are mutually exclusive")

func (h *Handler) since(req statementRequest) (time.Time, error) {
	if req.Since == "" {
		return accountservice.PeriodStart(req.Period, h.now())
	}

	if req.Period != "" {
		return time.Time{}, errPeriodAndSince
	}

	return time.Parse(time.RFC3339, req.Since)
}

type amountRequest struct {
	Amount string `json:"amount" binding:"required,amount"`
}

type transactionData struct {
	Transaction domain.Transaction `json:"transaction"`
}

type mutation func(ctx context.Context, accountID int64, amount decimal.Decimal) (domain.Transaction, error)

// Replenish handles http request to credit the account.
func (h *Handler) Replenish(gctx *gin.Context) {
	h.mutate(gctx, h.mutator.Replenish)
}

// Withdraw handles http request to debit the account.
func (h *Handler) Withdraw(gctx *gin.Context) {
	h.mutate(gctx, h.mutator.Withdraw)
}

func (h *Handler) mutate(gctx *gin.Context, fn mutation) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var uri uriRequest
	if err := gctx.ShouldBindUri(&uri); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, jsonresponse.BindingError(err))

		return
	}

	var req amountRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, jsonresponse.BindingError(err))

		return
	}

	amount, ok := moneypkg.Parse(req.Amount)
	if !ok {
		gctx.JSON(http.StatusBadRequest, jsonresponse.Error(domain.ErrInvalidAmount))
		return
	}

	t, err := fn(ctx, uri.ID, amount)
	if err != nil {
		respondError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, jsonresponse.Response{Data: transactionData{t}})
}

// errorStatus maps the error kinds of the core to http statuses. Earlier
// entries win when an error wraps several kinds.
var errorStatus = []struct {
	err    error
	status int
}{
	{domain.ErrAccountNotFound, http.StatusNotFound},
	{domain.ErrInvalidAmount, http.StatusBadRequest},
	{domain.ErrInsufficientFunds, http.StatusBadRequest},
	{domain.ErrConcurrentModification, http.StatusConflict},
	{domain.ErrLedgerWriteFailed, http.StatusInternalServerError},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
}

func respondError(gctx *gin.Context, err error) {
	l := zerolog.Ctx(gctx.Request.Context())

	for _, e := range errorStatus {
		if !errors.Is(err, e.err) {
			continue
		}

		if e.status >= http.StatusInternalServerError {
			l.Error().Err(err).Send()
		} else {
			l.Info().Err(err).Send()
		}

		gctx.JSON(e.status, jsonresponse.Error(e.err))

		return
	}

	l.Error().Err(err).Send()
	gctx.JSON(http.StatusInternalServerError, jsonresponse.Error(errorspkg.ErrInternal))
}
