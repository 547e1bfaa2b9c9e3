// Package transferdelivery manages delivery layer of transfers.
package transferdelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/go-petr/clever-bank/internal/domain"
	"github.com/go-petr/clever-bank/pkg/errorspkg"
	"github.com/go-petr/clever-bank/pkg/jsonresponse"
	"github.com/go-petr/clever-bank/pkg/moneypkg"
)

// Service provides service layer interface needed by transfer delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package transferdelivery
type Service interface {
	Transfer(ctx context.Context, arg domain.CreateTransferParams) (domain.TransferResult, error)
}

// Handler facilitates transfer delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns transfer handler.
func NewHandler(ts Service) *Handler {
	return &Handler{
		service: ts,
	}
}

type request struct {
	SenderID   int64  `json:"sender_id" binding:"required,min=1"`
	ReceiverID int64  `json:"receiver_id" binding:"required,min=1,nefield=SenderID"`
	Amount     string `json:"amount" binding:"required,amount"`
}

type data struct {
	Transfer domain.TransferResult `json:"transfer"`
}

var errorStatus = []struct {
	err    error
	status int
}{
	{domain.ErrSenderNotFound, http.StatusNotFound},
	{domain.ErrReceiverNotFound, http.StatusNotFound},
	{domain.ErrInvalidAmount, http.StatusBadRequest},
	{domain.ErrSameAccount, http.StatusBadRequest},
	{domain.ErrInsufficientFunds, http.StatusBadRequest},
	{domain.ErrConcurrentModification, http.StatusConflict},
	{domain.ErrTransferFailed, http.StatusInternalServerError},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
}

// Create handles http request to create a transfer between two accounts.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req request
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

	arg := domain.CreateTransferParams{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Amount:     amount,
	}

	result, err := h.service.Transfer(ctx, arg)
	if err != nil {
		for _, e := range errorStatus {
			if errors.Is(err, e.err) {
				l.Info().Err(err).Send()
				gctx.JSON(e.status, jsonresponse.Error(e.err))

				return
			}
		}

		l.Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, jsonresponse.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, jsonresponse.Response{Data: data{result}})
}
