package model

import (
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainBlock is the chain-agnostic view of one block handed to the indexer,
// whether it was mined by the local executor or fetched from a remote node.
type ChainBlock struct {
	Number     uint64
	Hash       string
	ParentHash string
	Txs        []*ChainTransaction
	Receipts   []*ChainReceipt
	Timestamp  uint64
}

type ChainTransaction struct {
	Id        string
	From      string
	To        string
	Value     string // wei, decimal
	Block     uint64
	Idx       uint32
	Timestamp uint64
	Input     string
}

type ChainReceipt struct {
	*types.Receipt
	Timestamp uint64
}

// Succeeded reports whether the transaction behind the receipt was applied.
func (r *ChainReceipt) Succeeded() bool {
	return r.Receipt != nil && r.Status == types.ReceiptStatusSuccessful
}
