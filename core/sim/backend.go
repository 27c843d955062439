package sim

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"nft-escrow-market/core/model"
	"nft-escrow-market/core/state"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds for transfer")
	ErrPaymentRejected   = errors.New("payment rejected by recipient")
	ErrNegativeValue     = errors.New("negative value")
	ErrBlockNotFound     = errors.New("block not found")
)

// Message is the outer call of a transaction. Check, when set, runs against
// the pre-transaction state before any value moves.
type Message struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Check func(tx *Tx) error
}

// Backend executes transactions one at a time against journaled state. Each
// committed transaction is mined into its own block; a failed transaction
// leaves no trace.
type Backend struct {
	mu sync.RWMutex

	journal   *state.Journal
	balances  *state.Map[common.Address, *big.Int]
	contracts map[common.Address]any
	nonces    map[common.Address]uint64
	txCount   uint64

	pending []*types.Log
	blocks  []*model.ChainBlock
	clock   func() time.Time
}

func NewBackend() *Backend {
	journal := state.NewJournal()
	b := &Backend{
		journal:   journal,
		balances:  state.NewMap[common.Address, *big.Int](journal),
		contracts: make(map[common.Address]any),
		nonces:    make(map[common.Address]uint64),
		clock:     time.Now,
	}
	b.blocks = append(b.blocks, &model.ChainBlock{
		Number:    0,
		Hash:      model.Keccak256([]byte("genesis")).Hex(),
		Timestamp: uint64(b.clock().Unix()),
	})
	return b
}

// WithClock overrides the source of block timestamps.
func (b *Backend) WithClock(clock func() time.Time) {
	if clock == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = clock
}

// Journal exposes the state journal so contracts can allocate journaled storage.
func (b *Backend) Journal() *state.Journal {
	return b.journal
}

// Deploy registers contract code under an address derived from the deployer
// and its deployment nonce.
func (b *Backend) Deploy(deployer common.Address, contract any) common.Address {
	b.mu.Lock()
	defer b.mu.Unlock()

	addr := crypto.CreateAddress(deployer, b.nonces[deployer])
	b.nonces[deployer]++
	b.contracts[addr] = contract
	logrus.Infof("deployed %T at %s by %s", contract, addr.Hex(), deployer.Hex())
	return addr
}

// Fund credits amount to addr outside of any transaction.
func (b *Backend) Fund(addr common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.credit(addr, amount)
	b.journal.Reset()
}

func (b *Backend) BalanceOf(addr common.Address) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balanceOf(addr)
}

// View runs read-only code against committed state.
func (b *Backend) View(fn func()) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	fn()
}

// Apply executes fn as a single transaction. msg.Check runs first, then value
// moves from msg.From to msg.To, then fn runs. If anything fails the state is
// reverted to what it was before the call and the error is returned.
func (b *Backend) Apply(ctx context.Context, msg Message, fn func(tx *Tx) error) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.txCount++
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], b.txCount)
	hash := model.Keccak256(msg.From.Bytes(), msg.To.Bytes(), nonce[:])

	value := msg.Value
	if value == nil {
		value = new(big.Int)
	}
	tx := &Tx{backend: b, sender: msg.From, self: msg.To, value: new(big.Int).Set(value), hash: hash}

	snapshot := b.journal.Snapshot()
	var err error
	if msg.Check != nil {
		err = msg.Check(tx)
	}
	if err == nil {
		err = b.transfer(msg.From, msg.To, value)
	}
	if err == nil {
		err = fn(tx)
	}
	if err != nil {
		b.journal.RevertToSnapshot(snapshot)
		logrus.Warnf("transaction %s from %s reverted: %v", hash.Hex(), msg.From.Hex(), err)
		return nil, err
	}

	receipt := b.mine(msg, value, hash)
	b.journal.Reset()
	return receipt, nil
}

// BlockNumber returns the height of the latest mined block.
func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return uint64(len(b.blocks) - 1), nil
}

func (b *Backend) BlockByNumber(ctx context.Context, number uint64) (*model.ChainBlock, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if number >= uint64(len(b.blocks)) {
		return nil, fmt.Errorf("%w: %d", ErrBlockNotFound, number)
	}
	return b.blocks[number], nil
}

func (b *Backend) mine(msg Message, value *big.Int, txHash common.Hash) *types.Receipt {
	parent := b.blocks[len(b.blocks)-1]
	number := parent.Number + 1
	timestamp := uint64(b.clock().Unix())

	var num [8]byte
	binary.BigEndian.PutUint64(num[:], number)
	blockHash := model.Keccak256(common.HexToHash(parent.Hash).Bytes(), num[:], txHash.Bytes())

	logs := b.pending
	b.pending = nil
	for i, l := range logs {
		l.BlockNumber = number
		l.BlockHash = blockHash
		l.TxHash = txHash
		l.TxIndex = 0
		l.Index = uint(i)
	}

	receipt := &types.Receipt{
		Type:              types.LegacyTxType,
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 0,
		Logs:              logs,
		TxHash:            txHash,
		BlockHash:         blockHash,
		BlockNumber:       new(big.Int).SetUint64(number),
		TransactionIndex:  0,
	}
	receipt.Bloom = types.CreateBloom(types.Receipts{receipt})

	b.blocks = append(b.blocks, &model.ChainBlock{
		Number:     number,
		Hash:       blockHash.Hex(),
		ParentHash: parent.Hash,
		Timestamp:  timestamp,
		Txs: []*model.ChainTransaction{{
			Id:        txHash.Hex(),
			From:      msg.From.Hex(),
			To:        msg.To.Hex(),
			Value:     value.String(),
			Block:     number,
			Idx:       0,
			Timestamp: timestamp,
		}},
		Receipts: []*model.ChainReceipt{{Receipt: receipt, Timestamp: timestamp}},
	})
	return receipt
}

func (b *Backend) balanceOf(addr common.Address) *big.Int {
	if bal, ok := b.balances.Get(addr); ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

func (b *Backend) credit(addr common.Address, amount *big.Int) {
	b.balances.Set(addr, new(big.Int).Add(b.balanceOf(addr), amount))
}

func (b *Backend) transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeValue
	}
	fromBalance := b.balanceOf(from)
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from.Hex(), fromBalance, amount)
	}
	b.balances.Set(from, fromBalance.Sub(fromBalance, amount))
	b.credit(to, amount)
	return nil
}

func (b *Backend) emit(addr common.Address, topics []common.Hash, data []byte) {
	b.pending = append(b.pending, &types.Log{
		Address: addr,
		Topics:  topics,
		Data:    data,
	})
	n := len(b.pending) - 1
	b.journal.Append(func() {
		b.pending = b.pending[:n]
	})
}
