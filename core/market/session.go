package market

import (
	"context"
	"math/big"

	"nft-escrow-market/core/model"
	"nft-escrow-market/core/sim"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// Session is the caller-facing API of a marketplace. Each state-changing call
// is one transaction on the backend; reads observe committed state only.
type Session struct {
	Backend *sim.Backend
	Market  *Marketplace
}

func NewSession(b *sim.Backend, m *Marketplace) *Session {
	return &Session{Backend: b, Market: m}
}

func (s *Session) CreateItem(ctx context.Context, from, nft common.Address, tokenId, price *big.Int) (uint64, *types.Receipt, error) {
	var itemId uint64
	receipt, err := s.Backend.Apply(ctx, sim.Message{From: from, To: s.Market.Address()}, func(tx *sim.Tx) error {
		var err error
		itemId, err = s.Market.CreateItem(tx, nft, tokenId, price)
		return err
	})
	if err != nil {
		return 0, nil, err
	}
	logrus.WithFields(logrus.Fields{
		"item":   itemId,
		"nft":    nft.Hex(),
		"token":  tokenId.String(),
		"price":  price.String(),
		"seller": from.Hex(),
		"tx":     receipt.TxHash.Hex(),
	}).Info("item offered")
	return itemId, receipt, nil
}

// PurchaseItem sends value from the buyer along with the purchase. The listing
// is checked before the value leaves the buyer, so an unknown or settled id is
// reported as such whatever the buyer can afford.
func (s *Session) PurchaseItem(ctx context.Context, from common.Address, itemId uint64, value *big.Int) (*types.Receipt, error) {
	var (
		item model.Item
		paid *big.Int
	)
	msg := sim.Message{
		From:  from,
		To:    s.Market.Address(),
		Value: value,
		Check: func(tx *sim.Tx) error {
			var err error
			paid = tx.Value()
			item, err = s.Market.CheckPurchase(itemId, paid)
			return err
		},
	}
	receipt, err := s.Backend.Apply(ctx, msg, func(tx *sim.Tx) error {
		return s.Market.PurchaseItem(tx, itemId)
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"item":   itemId,
		"price":  item.Price.String(),
		"fee":    new(big.Int).Sub(paid, item.Price).String(),
		"seller": item.Seller.Hex(),
		"buyer":  from.Hex(),
		"tx":     receipt.TxHash.Hex(),
	}).Info("item bought")
	return receipt, nil
}

func (s *Session) GetTotalCost(ctx context.Context, itemId uint64) (total *big.Int, err error) {
	s.Backend.View(func() {
		total, err = s.Market.GetTotalCost(itemId)
	})
	return total, err
}

func (s *Session) Item(ctx context.Context, itemId uint64) (item model.Item, err error) {
	s.Backend.View(func() {
		item, err = s.Market.Item(itemId)
	})
	return item, err
}

func (s *Session) ItemCount(ctx context.Context) (count uint64) {
	s.Backend.View(func() {
		count = s.Market.ItemCount()
	})
	return count
}

func (s *Session) FeeAccount() common.Address { return s.Market.FeeAccount() }

func (s *Session) FeePercent() uint64 { return s.Market.FeePercent() }
