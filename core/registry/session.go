package registry

import (
	"context"
	"math/big"

	"nft-escrow-market/core/sim"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Session submits calls to a collection as individual transactions.
type Session struct {
	Backend *sim.Backend
	NFT     *NFT
}

func NewSession(b *sim.Backend, nft *NFT) *Session {
	return &Session{Backend: b, NFT: nft}
}

func (s *Session) Mint(ctx context.Context, from common.Address, tokenURI string) (*big.Int, *types.Receipt, error) {
	var tokenId *big.Int
	receipt, err := s.Backend.Apply(ctx, sim.Message{From: from, To: s.NFT.Address()}, func(tx *sim.Tx) error {
		var err error
		tokenId, err = s.NFT.Mint(tx, tokenURI)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return tokenId, receipt, nil
}

func (s *Session) Approve(ctx context.Context, from, to common.Address, tokenId *big.Int) (*types.Receipt, error) {
	return s.Backend.Apply(ctx, sim.Message{From: from, To: s.NFT.Address()}, func(tx *sim.Tx) error {
		return s.NFT.Approve(tx, to, tokenId)
	})
}

func (s *Session) SetApprovalForAll(ctx context.Context, from, operator common.Address, approved bool) (*types.Receipt, error) {
	return s.Backend.Apply(ctx, sim.Message{From: from, To: s.NFT.Address()}, func(tx *sim.Tx) error {
		return s.NFT.SetApprovalForAll(tx, operator, approved)
	})
}

func (s *Session) TransferFrom(ctx context.Context, sender, from, to common.Address, tokenId *big.Int) (*types.Receipt, error) {
	return s.Backend.Apply(ctx, sim.Message{From: sender, To: s.NFT.Address()}, func(tx *sim.Tx) error {
		return s.NFT.TransferFrom(tx, from, to, tokenId)
	})
}

func (s *Session) OwnerOf(ctx context.Context, tokenId *big.Int) (owner common.Address, err error) {
	s.Backend.View(func() {
		owner, err = s.NFT.OwnerOf(tokenId)
	})
	return owner, err
}

func (s *Session) TokenURI(ctx context.Context, tokenId *big.Int) (uri string, err error) {
	s.Backend.View(func() {
		uri, err = s.NFT.TokenURI(tokenId)
	})
	return uri, err
}

func (s *Session) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (approved bool) {
	s.Backend.View(func() {
		approved = s.NFT.IsApprovedForAll(owner, operator)
	})
	return approved
}

func (s *Session) BalanceOf(ctx context.Context, owner common.Address) (balance uint64) {
	s.Backend.View(func() {
		balance = s.NFT.BalanceOf(owner)
	})
	return balance
}
