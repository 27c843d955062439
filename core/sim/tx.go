package sim

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PaymentReceiver is implemented by contracts that run code when they are
// paid. Returning an error rejects the payment.
type PaymentReceiver interface {
	OnPayment(tx *Tx, amount *big.Int) error
}

// Tx is one call frame of a transaction. Sender is the immediate caller and
// Self the account whose code is running.
type Tx struct {
	backend *Backend
	sender  common.Address
	self    common.Address
	value   *big.Int
	hash    common.Hash
}

func (tx *Tx) Sender() common.Address { return tx.sender }

func (tx *Tx) Self() common.Address { return tx.self }

func (tx *Tx) Hash() common.Hash { return tx.hash }

// Value is the amount sent with this call frame.
func (tx *Tx) Value() *big.Int {
	return new(big.Int).Set(tx.value)
}

func (tx *Tx) BalanceOf(addr common.Address) *big.Int {
	return tx.backend.balanceOf(addr)
}

// Contract returns the code deployed at addr.
func (tx *Tx) Contract(addr common.Address) (any, bool) {
	c, ok := tx.backend.contracts[addr]
	return c, ok
}

// Call runs fn as a nested frame in which Self becomes the sender and to the
// callee. value is moved from Self to to first. A failing frame is reverted on
// its own; the caller decides whether to propagate the error.
func (tx *Tx) Call(to common.Address, value *big.Int, fn func(inner *Tx) error) error {
	if value == nil {
		value = new(big.Int)
	}
	b := tx.backend
	snapshot := b.journal.Snapshot()
	if err := b.transfer(tx.self, to, value); err != nil {
		return err
	}
	inner := &Tx{backend: b, sender: tx.self, self: to, value: new(big.Int).Set(value), hash: tx.hash}
	if err := fn(inner); err != nil {
		b.journal.RevertToSnapshot(snapshot)
		return err
	}
	return nil
}

// Pay sends amount from Self to to, running to's PaymentReceiver hook if it
// has one.
func (tx *Tx) Pay(to common.Address, amount *big.Int) error {
	if amount == nil {
		amount = new(big.Int)
	}
	b := tx.backend
	snapshot := b.journal.Snapshot()
	if err := b.transfer(tx.self, to, amount); err != nil {
		return err
	}
	receiver, ok := b.contracts[to].(PaymentReceiver)
	if !ok {
		return nil
	}
	inner := &Tx{backend: b, sender: tx.self, self: to, value: new(big.Int).Set(amount), hash: tx.hash}
	if err := receiver.OnPayment(inner, new(big.Int).Set(amount)); err != nil {
		b.journal.RevertToSnapshot(snapshot)
		return fmt.Errorf("%w: %s: %w", ErrPaymentRejected, to.Hex(), err)
	}
	return nil
}

// Emit appends a log attributed to Self.
func (tx *Tx) Emit(topics []common.Hash, data []byte) {
	tx.backend.emit(tx.self, topics, data)
}
