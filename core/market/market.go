// Package market is the escrow engine: it takes tokens into custody on behalf
// of sellers, quotes a total cost including the marketplace fee, and settles
// purchases atomically.
package market

import (
	"fmt"
	"math/big"

	"nft-escrow-market/core/model"
	"nft-escrow-market/core/sim"
	"nft-escrow-market/core/state"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Registry is the part of an ERC-721 collection the marketplace relies on.
type Registry interface {
	TransferFrom(tx *sim.Tx, from, to common.Address, tokenId *big.Int) error
	OwnerOf(tokenId *big.Int) (common.Address, error)
	IsApprovedForAll(owner, operator common.Address) bool
}

type Marketplace struct {
	address common.Address
	policy  model.FeePolicy

	itemCount *state.Var[uint64]
	items     *state.Map[uint64, model.Item]
}

// Deploy installs a marketplace with an immutable fee policy. A zero fee
// account defaults to the deployer.
func Deploy(b *sim.Backend, deployer common.Address, policy model.FeePolicy) *Marketplace {
	if policy.FeeAccount == (common.Address{}) {
		policy.FeeAccount = deployer
	}
	j := b.Journal()
	m := &Marketplace{
		policy:    policy,
		itemCount: state.NewVar[uint64](j, 0),
		items:     state.NewMap[uint64, model.Item](j),
	}
	m.address = b.Deploy(deployer, m)
	logrus.Infof("marketplace %s fee account %s fee percent %d", m.address.Hex(), policy.FeeAccount.Hex(), policy.FeePercent)
	return m
}

func (m *Marketplace) Address() common.Address { return m.address }

func (m *Marketplace) FeeAccount() common.Address { return m.policy.FeeAccount }

func (m *Marketplace) FeePercent() uint64 { return m.policy.FeePercent }

func (m *Marketplace) ItemCount() uint64 { return m.itemCount.Get() }

// Item returns a copy of the listing with the given id.
func (m *Marketplace) Item(itemId uint64) (model.Item, error) {
	item, ok := m.items.Get(itemId)
	if !ok {
		return model.Item{}, fmt.Errorf("%w: %d", model.ErrListingNotFound, itemId)
	}
	return item.Copy(), nil
}

// GetTotalCost is the amount a buyer must send to purchase itemId.
func (m *Marketplace) GetTotalCost(itemId uint64) (*big.Int, error) {
	item, ok := m.items.Get(itemId)
	if !ok {
		return nil, fmt.Errorf("%w: %d", model.ErrListingNotFound, itemId)
	}
	return m.policy.TotalCost(item.Price), nil
}

// CreateItem pulls tokenId of nft from the caller into marketplace custody
// and lists it at price.
func (m *Marketplace) CreateItem(tx *sim.Tx, nft common.Address, tokenId *big.Int, price *big.Int) (uint64, error) {
	if price == nil || price.Sign() <= 0 {
		return 0, model.ErrInvalidPrice
	}
	if tokenId == nil || tokenId.Sign() < 0 {
		return 0, fmt.Errorf("%w: invalid token id", model.ErrTransferRejected)
	}
	seller := tx.Sender()

	if err := m.moveToken(tx, nft, seller, m.address, tokenId); err != nil {
		return 0, err
	}

	itemId := m.itemCount.Get() + 1
	m.itemCount.Set(itemId)
	item := model.Item{
		ItemId:  itemId,
		Nft:     nft,
		TokenId: new(big.Int).Set(tokenId),
		Price:   new(big.Int).Set(price),
		Seller:  seller,
		Sold:    false,
	}
	m.items.Set(itemId, item)

	topics, data, err := model.PackOffered(item)
	if err != nil {
		return 0, err
	}
	tx.Emit(topics, data)
	return itemId, nil
}

// PurchaseItem settles itemId with the value sent in tx. The seller receives
// the listing price and the fee account receives everything else that was
// sent, including any amount above the quoted total.
func (m *Marketplace) PurchaseItem(tx *sim.Tx, itemId uint64) error {
	payment := tx.Value()
	item, err := m.CheckPurchase(itemId, payment)
	if err != nil {
		return err
	}

	// Sold is set before any outside call.
	sold := item.Copy()
	sold.Sold = true
	m.items.Set(itemId, sold)

	buyer := tx.Sender()
	if err := m.moveToken(tx, item.Nft, m.address, buyer, item.TokenId); err != nil {
		return err
	}
	if err := tx.Pay(item.Seller, item.Price); err != nil {
		return fmt.Errorf("pay seller: %w", err)
	}
	fee := new(big.Int).Sub(payment, item.Price)
	if err := tx.Pay(m.policy.FeeAccount, fee); err != nil {
		return fmt.Errorf("pay fee account: %w", err)
	}

	topics, data, err := model.PackBought(item, buyer)
	if err != nil {
		return err
	}
	tx.Emit(topics, data)
	return nil
}

// CheckPurchase reports why itemId cannot be bought for payment, checking
// existence, then settlement, then the amount.
func (m *Marketplace) CheckPurchase(itemId uint64, payment *big.Int) (model.Item, error) {
	item, ok := m.items.Get(itemId)
	if !ok {
		return model.Item{}, fmt.Errorf("%w: %d", model.ErrListingNotFound, itemId)
	}
	if item.Sold {
		return model.Item{}, fmt.Errorf("%w: %d", model.ErrAlreadySettled, itemId)
	}
	totalCost := m.policy.TotalCost(item.Price)
	if payment == nil || payment.Cmp(totalCost) < 0 {
		return model.Item{}, fmt.Errorf("%w: sent %s, total cost %s", model.ErrInsufficientPayment, payment, totalCost)
	}
	return item.Copy(), nil
}

// moveToken asks the registry at nft, with the marketplace as caller, to move
// tokenId. Any refusal is reported as ErrTransferRejected.
func (m *Marketplace) moveToken(tx *sim.Tx, nft, from, to common.Address, tokenId *big.Int) error {
	code, ok := tx.Contract(nft)
	if !ok {
		return fmt.Errorf("%w: no contract at %s", model.ErrTransferRejected, nft.Hex())
	}
	registry, ok := code.(Registry)
	if !ok {
		return fmt.Errorf("%w: %s is not a token registry", model.ErrTransferRejected, nft.Hex())
	}
	err := tx.Call(nft, nil, func(inner *sim.Tx) error {
		return registry.TransferFrom(inner, from, to, tokenId)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrTransferRejected, err)
	}
	return nil
}
