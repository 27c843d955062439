package api

import (
	"fmt"
	"net/http"

	"nft-escrow-market/core/model"
	"nft-escrow-market/core/registry"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

func newTxResponse(receipt *types.Receipt) txResponse {
	return txResponse{TxHash: receipt.TxHash.Hex(), BlockNumber: receipt.BlockNumber.Uint64()}
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, marketResponse{
		Address:    s.market.Market.Address().Hex(),
		FeeAccount: s.market.FeeAccount().Hex(),
		FeePercent: s.market.FeePercent(),
		ItemCount:  s.market.ItemCount(r.Context()),
	})
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	nft, err := parseAddress("nft", req.Nft)
	if err != nil {
		writeError(w, err)
		return
	}
	tokenId, err := parseAmount("token_id", req.TokenId)
	if err != nil {
		writeError(w, err)
		return
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		writeError(w, err)
		return
	}

	itemId, receipt, err := s.market.CreateItem(r.Context(), from, nft, tokenId, price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createItemResponse{ItemId: itemId, TxHash: receipt.TxHash.Hex()})
}

func (s *Server) itemCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{"count": s.market.ItemCount(r.Context())})
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	itemId, err := parseUint("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	item, err := s.market.Item(r.Context(), itemId)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemResponse(item))
}

func (s *Server) getTotalCost(w http.ResponseWriter, r *http.Request) {
	itemId, err := parseUint("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := s.market.GetTotalCost(r.Context(), itemId)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAmountResponse(total))
}

func (s *Server) purchaseItem(w http.ResponseWriter, r *http.Request) {
	itemId, err := parseUint("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req purchaseRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	value, err := parseAmount("value", req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	if value.Sign() < 0 {
		writeError(w, fmt.Errorf("%w: value must not be negative", ErrBadRequest))
		return
	}

	receipt, err := s.market.PurchaseItem(r.Context(), from, itemId, value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTxResponse(receipt))
}

func (s *Server) deployCollection(w http.ResponseWriter, r *http.Request) {
	var req deployCollectionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	nft := registry.Deploy(s.backend, from, req.Name, req.Symbol)
	s.addCollection(nft)
	writeJSON(w, http.StatusCreated, collectionResponse{Address: nft.Address().Hex(), Name: nft.Name(), Symbol: nft.Symbol()})
}

func (s *Server) collectionParam(r *http.Request) (*registry.Session, error) {
	addr, err := parseAddress("nft", chi.URLParam(r, "nft"))
	if err != nil {
		return nil, err
	}
	c, ok := s.collection(addr)
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", model.ErrDocumentNotExists, addr.Hex())
	}
	return c, nil
}

func (s *Server) mint(w http.ResponseWriter, r *http.Request) {
	c, err := s.collectionParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req mintRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	tokenId, receipt, err := c.Mint(r.Context(), from, req.TokenURI)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mintResponse{TokenId: tokenId.String(), TxHash: receipt.TxHash.Hex()})
}

func (s *Server) setApprovalForAll(w http.ResponseWriter, r *http.Request) {
	c, err := s.collectionParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req approvalRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	operator, err := parseAddress("operator", req.Operator)
	if err != nil {
		writeError(w, err)
		return
	}
	receipt, err := c.SetApprovalForAll(r.Context(), from, operator, req.Approved)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTxResponse(receipt))
}

func (s *Server) getToken(w http.ResponseWriter, r *http.Request) {
	c, err := s.collectionParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tokenId, err := parseAmount("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := c.OwnerOf(r.Context(), tokenId)
	if err != nil {
		writeError(w, err)
		return
	}
	uri, err := c.TokenURI(r.Context(), tokenId)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{TokenId: tokenId.String(), Owner: owner.Hex(), TokenURI: uri})
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("addr", chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAmountResponse(s.backend.BalanceOf(addr)))
}

func (s *Server) fund(w http.ResponseWriter, r *http.Request) {
	if !s.faucet {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "faucet disabled", Code: "NotFound"})
		return
	}
	addr, err := parseAddress("addr", chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, err)
		return
	}
	amount := DefaultFaucetAmount
	if r.ContentLength != 0 {
		var req faucetRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.Amount != "" {
			if amount, err = parseAmount("amount", req.Amount); err != nil {
				writeError(w, err)
				return
			}
		}
	}
	if amount.Sign() <= 0 {
		writeError(w, fmt.Errorf("%w: amount must be positive", ErrBadRequest))
		return
	}
	s.backend.Fund(addr, amount)
	logrus.Infof("faucet funded %s with %s ether", addr.Hex(), model.FormatEther(amount))
	writeJSON(w, http.StatusOK, newAmountResponse(s.backend.BalanceOf(addr)))
}

func (s *Server) sellerHistory(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("addr", chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, err)
		return
	}
	recs, err := s.indexer.Store().ListingsBySeller(r.Context(), s.indexer.Market(), addr.Hex())
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeHistory(w, recs)
}

func (s *Server) buyerHistory(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("addr", chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, err)
		return
	}
	recs, err := s.indexer.Store().ListingsByBuyer(r.Context(), s.indexer.Market(), addr.Hex())
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeHistory(w, recs)
}

type historyResponse struct {
	Listings     []*model.ListingRecord `json:"listings"`
	IndexedBlock uint64                 `json:"indexed_block"`
}

func (s *Server) writeHistory(w http.ResponseWriter, recs []*model.ListingRecord) {
	if recs == nil {
		recs = []*model.ListingRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Listings: recs, IndexedBlock: s.indexer.LatestBlockNumber()})
}
