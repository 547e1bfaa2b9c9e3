// Package httpserver manages server creation and api routing.
package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/go-petr/clever-bank/internal/accountdelivery"
	"github.com/go-petr/clever-bank/internal/accountrepo"
	"github.com/go-petr/clever-bank/internal/accountservice"
	"github.com/go-petr/clever-bank/internal/accrualservice"
	"github.com/go-petr/clever-bank/internal/balanceservice"
	"github.com/go-petr/clever-bank/internal/guard"
	"github.com/go-petr/clever-bank/internal/memstore"
	"github.com/go-petr/clever-bank/internal/middleware"
	"github.com/go-petr/clever-bank/internal/transactionrepo"
	"github.com/go-petr/clever-bank/internal/transferdelivery"
	"github.com/go-petr/clever-bank/internal/transferservice"
	"github.com/go-petr/clever-bank/pkg/configpkg"
	"github.com/go-petr/clever-bank/pkg/dbpkg"
	"github.com/go-petr/clever-bank/pkg/moneypkg"
)

// AccountStore is everything the server needs from the account store.
type AccountStore interface {
	balanceservice.AccountRepo
	accrualservice.AccountLister
}

// LedgerStore is everything the server needs from the ledger store.
type LedgerStore interface {
	balanceservice.LedgerRepo
	accountservice.LedgerRepo
}

// Stores holds the account and ledger stores of one backend.
type Stores struct {
	Accounts AccountStore
	Ledger   LedgerStore
}

// PostgresStores returns stores backed by the given database.
func PostgresStores(db dbpkg.SQLInterface) Stores {
	return Stores{
		Accounts: accountrepo.NewRepoPGS(db),
		Ledger:   transactionrepo.NewRepoPGS(db),
	}
}

// MemoryStores returns stores sharing one in-process store.
func MemoryStores(s *memstore.Store) Stores {
	return Stores{
		Accounts: s,
		Ledger:   s,
	}
}

// Server holds the handlers router, the accrual loop and configuration.
type Server struct {
	Engine  *gin.Engine
	Accrual *accrualservice.Loop
	Config  configpkg.Config
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// New creates Server type with instantiated domains and routes.
func New(stores Stores, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	g := guard.New()

	balanceService := balanceservice.New(stores.Accounts, stores.Ledger, g)
	transferService := transferservice.New(balanceService, g)
	accountService := accountservice.New(stores.Accounts, stores.Ledger)
	accrualLoop := accrualservice.New(stores.Accounts, balanceService, g)

	accountHandler := accountdelivery.NewHandler(accountService, balanceService)
	transferHandler := transferdelivery.NewHandler(transferService)

	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))

	engine.GET("/accounts/:id", accountHandler.Get)
	engine.GET("/accounts/:id/transactions", accountHandler.Statement)
	engine.POST("/accounts/:id/replenish", accountHandler.Replenish)
	engine.POST("/accounts/:id/withdraw", accountHandler.Withdraw)

	engine.POST("/transfers", transferHandler.Create)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		err := v.RegisterValidation("amount", moneypkg.ValidAmount)
		if err != nil {
			return nil, errors.New("cannot register amount validator")
		}
	}

	server := &Server{
		Engine:  engine,
		Accrual: accrualLoop,
		Config:  config,
	}

	return server, nil
}
