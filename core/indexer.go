package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"nft-escrow-market/core/model"
	"nft-escrow-market/core/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

var (
	ErrBlockNumberNotMatch = errors.New("block number not match")
)

// BlockSource is anything that can hand out blocks in order: the local executor
// or a remote node.
type BlockSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*model.ChainBlock, error)
}

// Indexer replays the Offered and Bought logs of one marketplace into a store.
type Indexer struct {
	market string
	store  store.Store

	mu     sync.Mutex
	latest uint64
}

// NewIndexer resumes from the stored cursor of market, or from fromBlock when
// nothing has been indexed yet. Blocks after the cursor are applied next.
func NewIndexer(ctx context.Context, market common.Address, st store.Store, fromBlock uint64) (*Indexer, error) {
	idx := &Indexer{
		market: normalizeAddress(market),
		store:  st,
		latest: fromBlock,
	}
	cursor, ok, err := st.LoadCursor(ctx, idx.market)
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}
	if ok {
		idx.latest = cursor
	}
	logrus.Infof("indexer for market %s starts after block %d", idx.market, idx.latest)
	return idx, nil
}

func (idx *Indexer) Market() string {
	return idx.market
}

func (idx *Indexer) Store() store.Store {
	return idx.store
}

// LatestBlockNumber is the last block applied.
func (idx *Indexer) LatestBlockNumber() uint64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.latest
}

func (idx *Indexer) HandleNewBlock(ctx context.Context, block *model.ChainBlock) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	logrus.Debugf("handle block %d", block.Number)

	if idx.latest != block.Number-1 {
		logrus.Warn("block number not match, latest: ", idx.latest, ", current: ", block.Number)
		return fmt.Errorf("%w: latest %d, current %d", ErrBlockNumberNotMatch, idx.latest, block.Number)
	}

	for _, receipt := range block.Receipts {
		if err := idx.handleReceipt(ctx, receipt); err != nil {
			return err
		}
	}

	if err := idx.store.SaveCursor(ctx, idx.market, block.Number); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	idx.latest = block.Number

	return nil
}

// Sync applies every block of src after the cursor and returns how many blocks
// were applied.
func (idx *Indexer) Sync(ctx context.Context, src BlockSource) (int, error) {
	head, err := src.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("latest block number: %w", err)
	}
	applied := 0
	for n := idx.LatestBlockNumber() + 1; n <= head; n++ {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		block, err := src.BlockByNumber(ctx, n)
		if err != nil {
			return applied, fmt.Errorf("get block %d: %w", n, err)
		}
		if err := idx.HandleNewBlock(ctx, block); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func (idx *Indexer) handleReceipt(ctx context.Context, receipt *model.ChainReceipt) error {
	if !receipt.Succeeded() {
		return nil
	}
	for _, log := range receipt.Logs {
		if len(log.Topics) == 0 || normalizeAddress(log.Address) != idx.market {
			continue
		}
		switch log.Topics[0] {
		case model.TopicOffered:
			event, err := model.ParseOfferedEvent(log)
			if err != nil {
				logrus.Warnf("unpack event %s error: %s", model.OfferedEventName, err)
				continue
			}
			if err := idx.handleOffered(ctx, receipt, event); err != nil {
				return err
			}
		case model.TopicBought:
			event, err := model.ParseBoughtEvent(log)
			if err != nil {
				logrus.Warnf("unpack event %s error: %s", model.BoughtEventName, err)
				continue
			}
			if err := idx.handleBought(ctx, receipt, event); err != nil {
				return err
			}
		}
	}
	return nil
}

func (idx *Indexer) handleOffered(ctx context.Context, receipt *model.ChainReceipt, event *model.OfferedEvent) error {
	eventStr, _ := json.Marshal(event)
	logrus.Infof("handleReceipt hash:%s eventName: %s event: %s", receipt.TxHash.Hex(), model.OfferedEventName, eventStr)

	rec := &model.ListingRecord{
		Market:      idx.market,
		ItemId:      event.ItemId.Uint64(),
		Nft:         normalizeAddress(event.Nft),
		TokenId:     event.TokenId.String(),
		Price:       event.Price.String(),
		Seller:      normalizeAddress(event.Seller),
		ListedHash:  receipt.TxHash.Hex(),
		ListedBlock: receipt.BlockNumber.Uint64(),
		ListedTs:    receipt.Timestamp,
	}
	if err := idx.store.SaveListing(ctx, rec); err != nil {
		return fmt.Errorf("save listing %d: %w", rec.ItemId, err)
	}
	return nil
}

func (idx *Indexer) handleBought(ctx context.Context, receipt *model.ChainReceipt, event *model.BoughtEvent) error {
	eventStr, _ := json.Marshal(event)
	logrus.Infof("handleReceipt hash:%s eventName: %s event: %s", receipt.TxHash.Hex(), model.BoughtEventName, eventStr)

	itemId := event.ItemId.Uint64()
	sale := store.Sale{
		Buyer:     normalizeAddress(event.Buyer),
		TxHash:    receipt.TxHash.Hex(),
		Block:     receipt.BlockNumber.Uint64(),
		Timestamp: receipt.Timestamp,
	}
	err := idx.store.MarkSold(ctx, idx.market, itemId, sale)
	if !errors.Is(err, model.ErrDocumentNotExists) {
		return err
	}

	// The listing predates the cursor; the Bought log carries the whole item.
	logrus.Warnf("query list record %d not found, rebuilt from %s", itemId, model.BoughtEventName)
	rec := &model.ListingRecord{
		Market:    idx.market,
		ItemId:    itemId,
		Nft:       normalizeAddress(event.Nft),
		TokenId:   event.TokenId.String(),
		Price:     event.Price.String(),
		Seller:    normalizeAddress(event.Seller),
		Buyer:     sale.Buyer,
		Sold:      true,
		SoldHash:  sale.TxHash,
		SoldBlock: sale.Block,
		SoldTs:    sale.Timestamp,
	}
	if err := idx.store.SaveListing(ctx, rec); err != nil {
		return fmt.Errorf("save listing %d: %w", itemId, err)
	}
	return nil
}

func normalizeAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
