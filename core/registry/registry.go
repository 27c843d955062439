// Package registry is an in-memory ERC-721 collection living inside the
// transaction executor. It holds the owner of record for every token.
package registry

import (
	"errors"
	"fmt"
	"math/big"

	"nft-escrow-market/core/model"
	"nft-escrow-market/core/sim"
	"nft-escrow-market/core/state"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotAuthorized    = errors.New("caller is not token owner or approved")
	ErrNotOwner         = errors.New("transfer from incorrect owner")
	ErrNonexistentToken = errors.New("nonexistent token")
	ErrZeroAddress      = errors.New("transfer to the zero address")
	ErrApproveToCaller  = errors.New("approve to caller")
)

// TokenReceiver is implemented by contracts that want to observe incoming
// tokens. Returning an error rejects the transfer.
type TokenReceiver interface {
	OnTokenReceived(tx *sim.Tx, from common.Address, tokenId *big.Int) error
}

type NFT struct {
	address common.Address
	name    string
	symbol  string

	tokenCount *state.Var[uint64]
	owners     *state.Map[common.Hash, common.Address]
	uris       *state.Map[common.Hash, string]
	approvals  *state.Map[common.Hash, common.Address]
	operators  *state.Map[[2]common.Address, bool]
	balances   *state.Map[common.Address, uint64]
}

// Deploy creates a collection and installs it in the backend.
func Deploy(b *sim.Backend, deployer common.Address, name, symbol string) *NFT {
	j := b.Journal()
	nft := &NFT{
		name:       name,
		symbol:     symbol,
		tokenCount: state.NewVar[uint64](j, 0),
		owners:     state.NewMap[common.Hash, common.Address](j),
		uris:       state.NewMap[common.Hash, string](j),
		approvals:  state.NewMap[common.Hash, common.Address](j),
		operators:  state.NewMap[[2]common.Address, bool](j),
		balances:   state.NewMap[common.Address, uint64](j),
	}
	nft.address = b.Deploy(deployer, nft)
	return nft
}

func (n *NFT) Address() common.Address { return n.address }

func (n *NFT) Name() string { return n.name }

func (n *NFT) Symbol() string { return n.symbol }

func (n *NFT) TokenCount() uint64 { return n.tokenCount.Get() }

// Mint creates the next token, owned by the caller.
func (n *NFT) Mint(tx *sim.Tx, tokenURI string) (*big.Int, error) {
	to := tx.Sender()
	if to == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	id := n.tokenCount.Get() + 1
	n.tokenCount.Set(id)

	tokenId := new(big.Int).SetUint64(id)
	key := common.BigToHash(tokenId)
	n.owners.Set(key, to)
	n.uris.Set(key, tokenURI)
	n.balances.Set(to, n.BalanceOf(to)+1)

	tx.Emit(model.PackTransfer(common.Address{}, to, tokenId), nil)
	return tokenId, nil
}

// Approve lets to move a single token on the owner's behalf.
func (n *NFT) Approve(tx *sim.Tx, to common.Address, tokenId *big.Int) error {
	owner, err := n.OwnerOf(tokenId)
	if err != nil {
		return err
	}
	caller := tx.Sender()
	if caller != owner && !n.IsApprovedForAll(owner, caller) {
		return ErrNotAuthorized
	}
	n.approvals.Set(common.BigToHash(tokenId), to)
	tx.Emit(model.PackApproval(owner, to, tokenId), nil)
	return nil
}

func (n *NFT) SetApprovalForAll(tx *sim.Tx, operator common.Address, approved bool) error {
	owner := tx.Sender()
	if owner == operator {
		return ErrApproveToCaller
	}
	n.operators.Set([2]common.Address{owner, operator}, approved)
	topics, data, err := model.PackApprovalForAll(owner, operator, approved)
	if err != nil {
		return err
	}
	tx.Emit(topics, data)
	return nil
}

// TransferFrom moves tokenId from from to to. The caller must be from, the
// token's approved address, or an operator of from.
func (n *NFT) TransferFrom(tx *sim.Tx, from, to common.Address, tokenId *big.Int) error {
	owner, err := n.OwnerOf(tokenId)
	if err != nil {
		return err
	}
	caller := tx.Sender()
	key := common.BigToHash(tokenId)
	approved, _ := n.approvals.Get(key)
	if caller != owner && caller != approved && !n.IsApprovedForAll(owner, caller) {
		return fmt.Errorf("%w: %s may not move token %s", ErrNotAuthorized, caller.Hex(), tokenId)
	}
	if owner != from {
		return fmt.Errorf("%w: token %s is held by %s", ErrNotOwner, tokenId, owner.Hex())
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}

	if approved != (common.Address{}) {
		n.approvals.Set(key, common.Address{})
	}
	n.balances.Set(from, n.BalanceOf(from)-1)
	n.balances.Set(to, n.BalanceOf(to)+1)
	n.owners.Set(key, to)
	tx.Emit(model.PackTransfer(from, to, tokenId), nil)

	if receiver, ok := contractAt(tx, to).(TokenReceiver); ok {
		return tx.Call(to, nil, func(inner *sim.Tx) error {
			return receiver.OnTokenReceived(inner, from, new(big.Int).Set(tokenId))
		})
	}
	return nil
}

func (n *NFT) OwnerOf(tokenId *big.Int) (common.Address, error) {
	if tokenId == nil {
		return common.Address{}, ErrNonexistentToken
	}
	owner, ok := n.owners.Get(common.BigToHash(tokenId))
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrNonexistentToken, tokenId)
	}
	return owner, nil
}

func (n *NFT) GetApproved(tokenId *big.Int) (common.Address, error) {
	if _, err := n.OwnerOf(tokenId); err != nil {
		return common.Address{}, err
	}
	approved, _ := n.approvals.Get(common.BigToHash(tokenId))
	return approved, nil
}

func (n *NFT) IsApprovedForAll(owner, operator common.Address) bool {
	approved, _ := n.operators.Get([2]common.Address{owner, operator})
	return approved
}

func (n *NFT) TokenURI(tokenId *big.Int) (string, error) {
	if _, err := n.OwnerOf(tokenId); err != nil {
		return "", err
	}
	uri, _ := n.uris.Get(common.BigToHash(tokenId))
	return uri, nil
}

func (n *NFT) BalanceOf(owner common.Address) uint64 {
	balance, _ := n.balances.Get(owner)
	return balance
}

func contractAt(tx *sim.Tx, addr common.Address) any {
	c, _ := tx.Contract(addr)
	return c
}
