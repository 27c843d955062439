package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Item is one marketplace listing. Everything except Sold is fixed when the
// listing is created; Sold flips to true exactly once.
type Item struct {
	ItemId  uint64
	Nft     common.Address
	TokenId *big.Int
	Price   *big.Int
	Seller  common.Address
	Sold    bool
}

// Copy returns an Item that shares no big.Int values with the receiver.
func (it Item) Copy() Item {
	cp := it
	if it.TokenId != nil {
		cp.TokenId = new(big.Int).Set(it.TokenId)
	}
	if it.Price != nil {
		cp.Price = new(big.Int).Set(it.Price)
	}
	return cp
}

// FeePolicy is fixed when the marketplace is deployed.
type FeePolicy struct {
	FeeAccount common.Address
	FeePercent uint64
}

// TotalCost is price plus FeePercent percent of price, truncated.
func (p FeePolicy) TotalCost(price *big.Int) *big.Int {
	fee := new(big.Int).Mul(price, new(big.Int).SetUint64(p.FeePercent))
	fee.Div(fee, big.NewInt(100))
	return fee.Add(fee, price)
}
