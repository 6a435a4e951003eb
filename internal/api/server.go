package api

import (
	"context"

	"stablesend/internal/config"
	"stablesend/internal/engine"
	"stablesend/internal/health"
	"stablesend/internal/interfaces"
	"stablesend/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Settler executes routed transfers.
type Settler interface {
	RouteAndSettle(ctx context.Context, req engine.SettleRequest) (*models.Transfer, error)
}

// Store is the subset of the ledger the API reads and writes.
type Store interface {
	GetOrCreateUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetPreferredNetwork(ctx context.Context, userID string, network models.NetworkID) error
	CreateWallet(ctx context.Context, w *models.Wallet) error
	GetWalletsByUser(ctx context.Context, userID string) ([]models.Wallet, error)
	ListTransfersForUser(ctx context.Context, userID, email string, limit, offset int) ([]models.Transfer, error)
}

// BalanceReader aggregates custody balances across wallet handles.
type BalanceReader interface {
	Aggregate(ctx context.Context, walletHandles []string) (decimal.Decimal, map[string]decimal.Decimal)
}

type Server struct {
	store    Store
	settler  Settler
	balances BalanceReader
	custody  interfaces.Custody
	notifier interfaces.Notifier
	networks map[models.NetworkID]config.NetworkConfig
	logger   *zerolog.Logger
}

func NewServer(store Store, settler Settler, balances BalanceReader, custody interfaces.Custody, notifier interfaces.Notifier, networks map[models.NetworkID]config.NetworkConfig, logger *zerolog.Logger) *Server {
	return &Server{
		store:    store,
		settler:  settler,
		balances: balances,
		custody:  custody,
		notifier: notifier,
		networks: networks,
		logger:   logger,
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", health.LivenessHandler)
	r.Get("/readyz", health.ReadinessHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/transfers", s.handleCreateTransfer)
		r.Get("/transfers", s.handleListTransfers)
		r.Get("/balance", s.handleUnifiedBalance)
		r.Post("/users/check", s.handleCheckUser)
		r.Post("/users/setup", s.handleSetup)
		r.Post("/invites", s.handleInvite)
	})

	return r
}
