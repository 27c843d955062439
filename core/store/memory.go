package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"nft-escrow-market/core/model"
)

type listingKey struct {
	market string
	itemId uint64
}

type Memory struct {
	mu       sync.RWMutex
	listings map[listingKey]model.ListingRecord
	cursors  map[string]uint64
}

func NewMemory() *Memory {
	return &Memory{
		listings: make(map[listingKey]model.ListingRecord),
		cursors:  make(map[string]uint64),
	}
}

func (s *Memory) SaveListing(ctx context.Context, rec *model.ListingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[listingKey{strings.ToLower(rec.Market), rec.ItemId}] = *rec
	return nil
}

func (s *Memory) MarkSold(ctx context.Context, market string, itemId uint64, sale Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := listingKey{strings.ToLower(market), itemId}
	rec, ok := s.listings[key]
	if !ok {
		return fmt.Errorf("%w: listing %s/%d", model.ErrDocumentNotExists, market, itemId)
	}
	rec.Sold = true
	rec.Buyer = strings.ToLower(sale.Buyer)
	rec.SoldHash = sale.TxHash
	rec.SoldBlock = sale.Block
	rec.SoldTs = sale.Timestamp
	s.listings[key] = rec
	return nil
}

func (s *Memory) GetListing(ctx context.Context, market string, itemId uint64) (*model.ListingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.listings[listingKey{strings.ToLower(market), itemId}]
	if !ok {
		return nil, fmt.Errorf("%w: listing %s/%d", model.ErrDocumentNotExists, market, itemId)
	}
	return &rec, nil
}

func (s *Memory) ListingsBySeller(ctx context.Context, market, seller string) ([]*model.ListingRecord, error) {
	seller = strings.ToLower(seller)
	return s.filter(market, func(rec model.ListingRecord) bool { return rec.Seller == seller }), nil
}

func (s *Memory) ListingsByBuyer(ctx context.Context, market, buyer string) ([]*model.ListingRecord, error) {
	buyer = strings.ToLower(buyer)
	return s.filter(market, func(rec model.ListingRecord) bool { return rec.Sold && rec.Buyer == buyer }), nil
}

func (s *Memory) LoadCursor(ctx context.Context, market string) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	block, ok := s.cursors[strings.ToLower(market)]
	return block, ok, nil
}

func (s *Memory) SaveCursor(ctx context.Context, market string, blockNumber uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[strings.ToLower(market)] = blockNumber
	return nil
}

// filter returns matching records of market ordered by item id.
func (s *Memory) filter(market string, match func(model.ListingRecord) bool) []*model.ListingRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	market = strings.ToLower(market)
	var res []*model.ListingRecord
	for key, rec := range s.listings {
		if key.market != market || !match(rec) {
			continue
		}
		rec := rec
		res = append(res, &rec)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ItemId < res[j].ItemId })
	return res
}
