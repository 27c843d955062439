package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"nft-escrow-market/core/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

var (
	ErrBadRequest = errors.New("bad request")
)

type createItemRequest struct {
	From    string `json:"from"`
	Nft     string `json:"nft"`
	TokenId string `json:"token_id"`
	Price   string `json:"price"`
}

type createItemResponse struct {
	ItemId uint64 `json:"item_id"`
	TxHash string `json:"tx_hash"`
}

type purchaseRequest struct {
	From  string `json:"from"`
	Value string `json:"value"`
}

type txResponse struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

type itemResponse struct {
	ItemId     uint64 `json:"item_id"`
	Nft        string `json:"nft"`
	TokenId    string `json:"token_id"`
	Price      string `json:"price"`
	PriceEther string `json:"price_ether"`
	Seller     string `json:"seller"`
	Sold       bool   `json:"sold"`
}

func newItemResponse(item model.Item) itemResponse {
	return itemResponse{
		ItemId:     item.ItemId,
		Nft:        item.Nft.Hex(),
		TokenId:    item.TokenId.String(),
		Price:      item.Price.String(),
		PriceEther: model.FormatEther(item.Price),
		Seller:     item.Seller.Hex(),
		Sold:       item.Sold,
	}
}

type amountResponse struct {
	Wei   string `json:"wei"`
	Ether string `json:"ether"`
}

func newAmountResponse(wei *big.Int) amountResponse {
	return amountResponse{Wei: wei.String(), Ether: model.FormatEther(wei)}
}

type marketResponse struct {
	Address    string `json:"address"`
	FeeAccount string `json:"fee_account"`
	FeePercent uint64 `json:"fee_percent"`
	ItemCount  uint64 `json:"item_count"`
}

type deployCollectionRequest struct {
	From   string `json:"from"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

type collectionResponse struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type mintRequest struct {
	From     string `json:"from"`
	TokenURI string `json:"token_uri"`
}

type mintResponse struct {
	TokenId string `json:"token_id"`
	TxHash  string `json:"tx_hash"`
}

type approvalRequest struct {
	From     string `json:"from"`
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

type tokenResponse struct {
	TokenId  string `json:"token_id"`
	Owner    string `json:"owner"`
	TokenURI string `json:"token_uri"`
}

type faucetRequest struct {
	Amount string `json:"amount"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("write response: %v", err)
	}
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s is not an address: %q", ErrBadRequest, field, value)
	}
	return common.HexToAddress(value), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	amount, err := model.ParseWei(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadRequest, field, err)
	}
	return amount, nil
}

func parseUint(field, value string) (uint64, error) {
	n, ok := new(big.Int).SetString(value, 10)
	if !ok || n.Sign() < 0 || !n.IsUint64() {
		return 0, fmt.Errorf("%w: %s must be an unsigned integer: %q", ErrBadRequest, field, value)
	}
	return n.Uint64(), nil
}
