package transferdelivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/clever-bank/internal/domain"
	"github.com/go-petr/clever-bank/internal/test"
	"github.com/go-petr/clever-bank/pkg/errorspkg"
	"github.com/go-petr/clever-bank/pkg/jsonresponse"
	"github.com/go-petr/clever-bank/pkg/moneypkg"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("amount", moneypkg.ValidAmount); err != nil {
			fmt.Fprintf(os.Stderr, "register amount validator: %v\n", err)
			os.Exit(1)
		}
	}

	os.Exit(m.Run())
}

func TestCreateTransferAPI(t *testing.T) {
	testAccount1 := test.RandomAccount()
	testAccount2 := test.RandomAccount()
	testAccount2.ID = testAccount1.ID + 1

	amount := decimal.RequireFromString("100")

	okArg := domain.CreateTransferParams{
		SenderID:   testAccount1.ID,
		ReceiverID: testAccount2.ID,
		Amount:     amount,
	}

	result := domain.TransferResult{
		Transaction: domain.Transaction{
			ID:         1,
			Amount:     amount,
			Timestamp:  time.Now().Truncate(time.Second).UTC(),
			SenderID:   testAccount1.ID,
			ReceiverID: testAccount2.ID,
		},
		Sender:   testAccount1,
		Receiver: testAccount2,
	}

	testCases := []struct {
		name          string
		body          gin.H
		buildStubs    func(s *MockService)
		checkResponse func(t *testing.T, recorder *httptest.ResponseRecorder)
	}{
		{
			name: "OK",
			body: gin.H{
				"sender_id":   testAccount1.ID,
				"receiver_id": testAccount2.ID,
				"amount":      "100",
			},
			buildStubs: func(s *MockService) {
				s.EXPECT().Transfer(gomock.Any(), gomock.Any()).
					Times(1).
					DoAndReturn(func(_ context.Context, arg domain.CreateTransferParams) (domain.TransferResult, error) {
						if diff := cmp.Diff(okArg, arg); diff != "" {
							t.Errorf("Transfer() arg mismatch (-want +got):\n%s", diff)
						}
						return result, nil
					})
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, recorder.Code)

				got := &data{}
				res := jsonresponse.Response{Data: got}
				require.NoError(t, json.NewDecoder(recorder.Body).Decode(&res))

				if diff := cmp.Diff(result, got.Transfer); diff != "" {
					t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "SameAccount",
			body: gin.H{
				"sender_id":   testAccount1.ID,
				"receiver_id": testAccount1.ID,
				"amount":      "100",
			},
			buildStubs: func(s *MockService) {
				s.EXPECT().Transfer(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				requireError(t, recorder, http.StatusBadRequest, "ReceiverID must differ from SenderID")
			},
		},
		{
			name: "InvalidSenderID",
			body: gin.H{
				"sender_id":   -1,
				"receiver_id": testAccount2.ID,
				"amount":      "100",
			},
			buildStubs: func(s *MockService) {
				s.EXPECT().Transfer(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				requireError(t, recorder, http.StatusBadRequest, "SenderID must be at least 1")
			},
		},
		{
			name: "InvalidAmount",
			body: gin.H{
				"sender_id":   testAccount1.ID,
				"receiver_id": testAccount2.ID,
				"amount":      "ten",
			},
			buildStubs: func(s *MockService) {
				s.EXPECT().Transfer(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				requireError(t, recorder, http.StatusBadRequest,
					"Amount must be a positive amount with at most 2 decimal places")
			},
		},
		{
			name: "SenderNotFound",
			body: gin.H{
				"sender_id":   testAccount1.ID,
				"receiver_id": testAccount2.ID,
				"amount":      "100",
			},
			buildStubs: func(s *MockService) {
				s.EXPECT().Transfer(gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.TransferResult{}, domain.ErrSenderNotFound)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				requireError(t, recorder, http.StatusNotFound, domain.ErrSenderNotFound.Error())
			},
		},
		{
			name: "ReceiverNotFound",
			body: gin.H{
				"sender_id":   testAccount1.ID,
				"receiver_id": testAccount2.ID,
				"amount":      "100",
			},
			buildStubs: func(s *MockService) {
				s.EXPECT().Transfer(gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.TransferResult{}, domain.ErrReceiverNotFound)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				requireError(t, recorder, http.StatusNotFound, domain.ErrReceiverNotFound.Error())
			},
		},
		{
			name: "InsufficientFunds",
			body: gin.H{
				"sender_id":   testAccount1.ID,
				"receiver_id": testAccount2.ID,
				"amount":      "100",
			},
			buildStubs: func(s *MockService) {
				s.EXPECT().Transfer(gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.TransferResult{}, domain.ErrInsufficientFunds)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				requireError(t, recorder, http.StatusBadRequest, domain.ErrInsufficientFunds.Error())
			},
		},
		{
			name: "TransferFailed",
			body: gin.H{
				"sender_id":   testAccount1.ID,
				"receiver_id": testAccount2.ID,
				"amount":      "100",
			},
			buildStubs: func(s *MockService) {
				s.EXPECT().Transfer(gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.TransferResult{},
						fmt.Errorf("%w: %w", domain.ErrTransferFailed, domain.ErrStoreUnavailable))
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				requireError(t, recorder, http.StatusInternalServerError, domain.ErrTransferFailed.Error())
			},
		},
		{
			name: "StoreUnavailable",
			body: gin.H{
				"sender_id":   testAccount1.ID,
				"receiver_id": testAccount2.ID,
				"amount":      "100",
			},
			buildStubs: func(s *MockService) {
				s.EXPECT().Transfer(gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.TransferResult{}, domain.ErrStoreUnavailable)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				requireError(t, recorder, http.StatusServiceUnavailable, domain.ErrStoreUnavailable.Error())
			},
		},
		{
			name: "InternalError",
			body: gin.H{
				"sender_id":   testAccount1.ID,
				"receiver_id": testAccount2.ID,
				"amount":      "100",
			},
			buildStubs: func(s *MockService) {
				s.EXPECT().Transfer(gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.TransferResult{}, fmt.Errorf("unexpected"))
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				requireError(t, recorder, http.StatusInternalServerError, errorspkg.ErrInternal.Error())
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			transferService := NewMockService(ctrl)
			tc.buildStubs(transferService)

			server := gin.New()
			server.POST("/transfers", NewHandler(transferService).Create)

			body, err := json.Marshal(tc.body)
			require.NoError(t, err)

			req, err := http.NewRequest(http.MethodPost, "/transfers", bytes.NewReader(body))
			require.NoError(t, err)

			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, req)

			tc.checkResponse(t, recorder)
		})
	}
}

func requireError(t *testing.T, recorder *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()

	require.Equal(t, status, recorder.Code)

	var res jsonresponse.Response
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&res))
	require.Equal(t, msg, res.Error)
}
