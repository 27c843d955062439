package chain

import (
	"context"
	"encoding/hex"
	"math/big"

	"nft-escrow-market/core/model"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

// BlockchainClient reads blocks and contract state from a remote EVM node.
type BlockchainClient struct {
	client *ethclient.Client
}

func NewBlockchainClient(ctx context.Context, ethURL string) (*BlockchainClient, error) {
	client, err := ethclient.DialContext(ctx, ethURL)
	if err != nil {
		return nil, err
	}
	return &BlockchainClient{client: client}, nil
}

// Caller exposes the node for read-only contract calls.
func (bc *BlockchainClient) Caller() bind.ContractCaller {
	return bc.client
}

func (bc *BlockchainClient) Close() {
	bc.client.Close()
}

func (bc *BlockchainClient) GetBlock(ctx context.Context, blockNumber uint64) (*types.Block, error) {
	return bc.client.BlockByNumber(ctx, new(big.Int).SetUint64(blockNumber))
}

func (bc *BlockchainClient) GetBlockReceiptsByAPI(ctx context.Context, blockNumber uint64) ([]*types.Receipt, error) {
	return bc.client.BlockReceipts(ctx, rpc.BlockNumberOrHashWithNumber(rpc.BlockNumber(blockNumber)))
}

// GetBlockReceipts fetches receipts one transaction at a time, for nodes that
// do not serve eth_getBlockReceipts.
func (bc *BlockchainClient) GetBlockReceipts(ctx context.Context, block *types.Block) ([]*types.Receipt, error) {
	var res []*types.Receipt
	for _, tx := range block.Transactions() {
		receipt, err := bc.client.TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			logrus.Errorf("GetBlockReceipts %v err: %v", tx.Hash(), err)
			return nil, err
		}
		res = append(res, receipt)
	}
	return res, nil
}

// BlockNumber returns the number of the latest block.
func (bc *BlockchainClient) BlockNumber(ctx context.Context) (uint64, error) {
	header, err := bc.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	return header.Number.Uint64(), nil
}

// BlockByNumber returns the block together with its receipts.
func (bc *BlockchainClient) BlockByNumber(ctx context.Context, number uint64) (*model.ChainBlock, error) {
	block, err := bc.GetBlock(ctx, number)
	if err != nil {
		logrus.Errorf("GetBlock %d err: %v", number, err)
		return nil, err
	}
	receipts, err := bc.GetBlockReceiptsByAPI(ctx, number)
	if err != nil {
		logrus.Warnf("GetBlockReceiptsByAPI %d err: %v, falling back to per transaction receipts", number, err)
		if receipts, err = bc.GetBlockReceipts(ctx, block); err != nil {
			return nil, err
		}
	}
	return ConvertBlockToChainBlock(block, receipts), nil
}

func ConvertBlockToChainBlock(block *types.Block, receipts []*types.Receipt) *model.ChainBlock {
	chainBlock := &model.ChainBlock{
		Number:     block.Number().Uint64(),
		Hash:       block.Hash().Hex(),
		ParentHash: block.ParentHash().Hex(),
		Timestamp:  block.Time(),
	}
	for idx, tx := range block.Transactions() {
		var from string
		if sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx); err != nil {
			logrus.Warnf("failed to get sender of %s: %v", tx.Hash().Hex(), err)
		} else {
			from = sender.Hex()
		}

		var to string
		if tx.To() != nil {
			to = tx.To().Hex()
		}

		chainTx := &model.ChainTransaction{
			Id:        tx.Hash().Hex(),
			From:      from,
			To:        to,
			Value:     tx.Value().String(),
			Block:     block.Number().Uint64(),
			Idx:       uint32(idx),
			Timestamp: block.Time(),
			Input:     "0x" + hex.EncodeToString(tx.Data()),
		}
		chainBlock.Txs = append(chainBlock.Txs, chainTx)
	}
	for _, receipt := range receipts {
		chainReceipt := &model.ChainReceipt{
			Receipt:   receipt,
			Timestamp: block.Time(),
		}
		chainBlock.Receipts = append(chainBlock.Receipts, chainReceipt)
	}
	return chainBlock
}
