// Package store persists the indexed listing history.
package store

import (
	"context"

	"nft-escrow-market/core/model"
)

// Store keeps ListingRecords keyed by market and item id. Addresses are stored
// lower-case.
type Store interface {
	SaveListing(ctx context.Context, rec *model.ListingRecord) error
	// MarkSold records the settlement of a listing that has already been saved.
	MarkSold(ctx context.Context, market string, itemId uint64, sale Sale) error
	GetListing(ctx context.Context, market string, itemId uint64) (*model.ListingRecord, error)
	ListingsBySeller(ctx context.Context, market, seller string) ([]*model.ListingRecord, error)
	ListingsByBuyer(ctx context.Context, market, buyer string) ([]*model.ListingRecord, error)
	LoadCursor(ctx context.Context, market string) (uint64, bool, error)
	SaveCursor(ctx context.Context, market string, blockNumber uint64) error
}

// Sale is the settlement half of a ListingRecord.
type Sale struct {
	Buyer     string
	TxHash    string
	Block     uint64
	Timestamp uint64
}
