package sim

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type rejectingReceiver struct{}

func (rejectingReceiver) OnPayment(tx *Tx, amount *big.Int) error {
	return errors.New("no thanks")
}

type countingReceiver struct {
	calls int
}

func (r *countingReceiver) OnPayment(tx *Tx, amount *big.Int) error {
	r.calls++
	return nil
}

func TestApplyMovesValueAndMinesBlock(t *testing.T) {
	b := NewBackend()
	b.Fund(alice, big.NewInt(100))

	receipt, err := b.Apply(context.Background(), Message{From: alice, To: bob, Value: big.NewInt(40)}, func(tx *Tx) error {
		if tx.Value().Int64() != 40 {
			t.Fatalf("expected value 40 in frame, got %s", tx.Value())
		}
		tx.Emit([]common.Hash{common.HexToHash("0x01")}, nil)
		return nil
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if b.BalanceOf(alice).Int64() != 60 || b.BalanceOf(bob).Int64() != 40 {
		t.Fatalf("unexpected balances alice=%s bob=%s", b.BalanceOf(alice), b.BalanceOf(bob))
	}
	if receipt.BlockNumber.Uint64() != 1 || len(receipt.Logs) != 1 {
		t.Fatalf("unexpected receipt: block=%s logs=%d", receipt.BlockNumber, len(receipt.Logs))
	}
	if receipt.Logs[0].Address != bob || receipt.Logs[0].TxHash != receipt.TxHash {
		t.Fatalf("log not attributed to callee/transaction: %+v", receipt.Logs[0])
	}

	height, _ := b.BlockNumber(context.Background())
	block, err := b.BlockByNumber(context.Background(), height)
	if err != nil {
		t.Fatalf("block by number: %v", err)
	}
	if len(block.Receipts) != 1 || block.Txs[0].Id != receipt.TxHash.Hex() {
		t.Fatalf("mined block does not carry the transaction")
	}
}

func TestApplyRevertsEverythingOnError(t *testing.T) {
	b := NewBackend()
	b.Fund(alice, big.NewInt(100))
	boom := errors.New("boom")

	_, err := b.Apply(context.Background(), Message{From: alice, To: bob, Value: big.NewInt(10)}, func(tx *Tx) error {
		tx.Emit([]common.Hash{common.HexToHash("0x01")}, nil)
		if err := tx.Pay(alice, big.NewInt(5)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if b.BalanceOf(alice).Int64() != 100 || b.BalanceOf(bob).Sign() != 0 {
		t.Fatalf("balances not restored: alice=%s bob=%s", b.BalanceOf(alice), b.BalanceOf(bob))
	}
	if height, _ := b.BlockNumber(context.Background()); height != 0 {
		t.Fatalf("reverted transaction was mined at height %d", height)
	}

	receipt, err := b.Apply(context.Background(), Message{From: alice, To: bob}, func(tx *Tx) error { return nil })
	if err != nil {
		t.Fatalf("apply after revert: %v", err)
	}
	if len(receipt.Logs) != 0 {
		t.Fatalf("logs from reverted transaction leaked into next block")
	}
}

func TestApplyRejectsValueAboveBalance(t *testing.T) {
	b := NewBackend()
	b.Fund(alice, big.NewInt(5))

	ran := false
	_, err := b.Apply(context.Background(), Message{From: alice, To: bob, Value: big.NewInt(6)}, func(tx *Tx) error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if ran {
		t.Fatalf("transaction body ran without funds")
	}
}

func TestApplyRunsCheckBeforeValueMoves(t *testing.T) {
	b := NewBackend()
	b.Fund(alice, big.NewInt(5))
	notForSale := errors.New("not for sale")

	_, err := b.Apply(context.Background(), Message{
		From:  alice,
		To:    bob,
		Value: big.NewInt(6),
		Check: func(tx *Tx) error {
			if tx.BalanceOf(alice).Int64() != 5 || tx.Value().Int64() != 6 {
				t.Fatalf("check saw moved value: alice=%s value=%s", tx.BalanceOf(alice), tx.Value())
			}
			return notForSale
		},
	}, func(tx *Tx) error { return nil })
	if !errors.Is(err, notForSale) {
		t.Fatalf("expected the check error before the funds error, got %v", err)
	}

	_, err = b.Apply(context.Background(), Message{
		From:  alice,
		To:    bob,
		Value: big.NewInt(6),
		Check: func(tx *Tx) error { return nil },
	}, func(tx *Tx) error { return nil })
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds once the check passes, got %v", err)
	}
	if b.BalanceOf(alice).Int64() != 5 {
		t.Fatalf("balance changed: %s", b.BalanceOf(alice))
	}
}

func TestPayRunsReceiverHook(t *testing.T) {
	b := NewBackend()
	deployer := common.HexToAddress("0xd0")
	counter := &countingReceiver{}
	counterAddr := b.Deploy(deployer, counter)
	rejecter := b.Deploy(deployer, rejectingReceiver{})
	b.Fund(alice, big.NewInt(100))

	_, err := b.Apply(context.Background(), Message{From: alice, To: bob, Value: big.NewInt(10)}, func(tx *Tx) error {
		return tx.Pay(counterAddr, big.NewInt(10))
	})
	if err != nil {
		t.Fatalf("pay counter: %v", err)
	}
	if counter.calls != 1 || b.BalanceOf(counterAddr).Int64() != 10 {
		t.Fatalf("hook calls=%d balance=%s", counter.calls, b.BalanceOf(counterAddr))
	}

	_, err = b.Apply(context.Background(), Message{From: alice, To: bob, Value: big.NewInt(10)}, func(tx *Tx) error {
		return tx.Pay(rejecter, big.NewInt(10))
	})
	if !errors.Is(err, ErrPaymentRejected) {
		t.Fatalf("expected ErrPaymentRejected, got %v", err)
	}
	if b.BalanceOf(rejecter).Sign() != 0 || b.BalanceOf(alice).Int64() != 90 {
		t.Fatalf("rejected payment not reverted: rejecter=%s alice=%s", b.BalanceOf(rejecter), b.BalanceOf(alice))
	}
}

func TestNestedCallSeesCallerAsSender(t *testing.T) {
	b := NewBackend()
	b.Fund(alice, big.NewInt(10))
	carol := common.HexToAddress("0xca")

	_, err := b.Apply(context.Background(), Message{From: alice, To: bob, Value: big.NewInt(10)}, func(tx *Tx) error {
		failed := tx.Call(carol, big.NewInt(4), func(inner *Tx) error {
			if inner.Sender() != bob || inner.Self() != carol {
				t.Fatalf("unexpected frame sender=%s self=%s", inner.Sender().Hex(), inner.Self().Hex())
			}
			return errors.New("inner failure")
		})
		if failed == nil {
			t.Fatalf("expected inner failure")
		}
		return tx.Call(carol, big.NewInt(3), func(inner *Tx) error { return nil })
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if b.BalanceOf(carol).Int64() != 3 || b.BalanceOf(bob).Int64() != 7 {
		t.Fatalf("unexpected balances carol=%s bob=%s", b.BalanceOf(carol), b.BalanceOf(bob))
	}
}

func TestDeployAddressesAreUnique(t *testing.T) {
	b := NewBackend()
	first := b.Deploy(alice, struct{}{})
	second := b.Deploy(alice, struct{}{})
	if first == second {
		t.Fatalf("expected distinct contract addresses")
	}
}
