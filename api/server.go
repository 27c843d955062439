// Package api serves the marketplace over HTTP/JSON.
package api

import (
	"errors"
	"math/big"
	"net/http"
	"sync"
	"time"

	"nft-escrow-market/core"
	"nft-escrow-market/core/market"
	"nft-escrow-market/core/model"
	"nft-escrow-market/core/registry"
	"nft-escrow-market/core/sim"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-Id"

// DefaultFaucetAmount is 100 ether.
var DefaultFaucetAmount = new(big.Int).Mul(big.NewInt(100), new(big.Int).Exp(big.NewInt(10), big.NewInt(model.EtherDecimals), nil))

type Options struct {
	Backend     *sim.Backend
	Market      *market.Session
	Collections []*registry.NFT
	Indexer     *core.Indexer
	Faucet      bool
}

type Server struct {
	backend *sim.Backend
	market  *market.Session
	indexer *core.Indexer
	faucet  bool

	mu          sync.RWMutex
	collections map[common.Address]*registry.Session
}

func NewServer(opts Options) *Server {
	s := &Server{
		backend:     opts.Backend,
		market:      opts.Market,
		indexer:     opts.Indexer,
		faucet:      opts.Faucet,
		collections: make(map[common.Address]*registry.Session),
	}
	for _, nft := range opts.Collections {
		s.collections[nft.Address()] = registry.NewSession(opts.Backend, nft)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/v1", func(api chi.Router) {
		api.Get("/market", s.getMarket)

		api.Route("/listings", func(listings chi.Router) {
			listings.Post("/", s.createItem)
			listings.Get("/count", s.itemCount)
			listings.Get("/{id}", s.getItem)
			listings.Get("/{id}/total-cost", s.getTotalCost)
			listings.Post("/{id}/purchase", s.purchaseItem)
		})

		api.Route("/collections", func(collections chi.Router) {
			collections.Post("/", s.deployCollection)
			collections.Post("/{nft}/tokens", s.mint)
			collections.Post("/{nft}/approvals", s.setApprovalForAll)
			collections.Get("/{nft}/tokens/{id}", s.getToken)
		})

		api.Get("/accounts/{addr}/balance", s.getBalance)
		api.Post("/accounts/{addr}/faucet", s.fund)

		api.Get("/history/sellers/{addr}", s.sellerHistory)
		api.Get("/history/buyers/{addr}", s.buyerHistory)
	})
	return r
}

func (s *Server) collection(addr common.Address) (*registry.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[addr]
	return c, ok
}

func (s *Server) addCollection(nft *registry.NFT) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[nft.Address()] = registry.NewSession(s.backend, nft)
}

// requestLogger tags each request with an id and logs its outcome.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		logrus.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
		}).Info("http request")
	})
}

// statusOf maps an error to its HTTP status and rejection kind.
func statusOf(err error) (int, string) {
	switch code := model.ErrorCode(err); code {
	case "InvalidPrice":
		return http.StatusBadRequest, code
	case "TransferRejected":
		return http.StatusForbidden, code
	case "ListingNotFound":
		return http.StatusNotFound, code
	case "AlreadySettled":
		return http.StatusConflict, code
	case "InsufficientPayment":
		return http.StatusPaymentRequired, code
	}
	switch {
	case errors.Is(err, sim.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "InsufficientFunds"
	case errors.Is(err, registry.ErrNonexistentToken):
		return http.StatusNotFound, "NonexistentToken"
	case errors.Is(err, registry.ErrNotAuthorized), errors.Is(err, registry.ErrNotOwner):
		return http.StatusForbidden, "NotAuthorized"
	case errors.Is(err, registry.ErrZeroAddress), errors.Is(err, registry.ErrApproveToCaller):
		return http.StatusBadRequest, "InvalidArgument"
	case errors.Is(err, model.ErrDocumentNotExists):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "BadRequest"
	}
	return http.StatusInternalServerError, "Internal"
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		logrus.Errorf("request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}
