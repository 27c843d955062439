package core

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"nft-escrow-market/core/market"
	"nft-escrow-market/core/model"
	"nft-escrow-market/core/registry"
	"nft-escrow-market/core/sim"
	"nft-escrow-market/core/store"

	"github.com/ethereum/go-ethereum/common"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	seller   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	buyer    = common.HexToAddress("0x00000000000000000000000000000000000000a2")
)

type indexerFixture struct {
	backend *sim.Backend
	nft     *registry.Session
	market  *market.Session
}

func newIndexerFixture(t *testing.T) *indexerFixture {
	t.Helper()
	b := sim.NewBackend()
	nft := registry.Deploy(b, deployer, "SCVNGR HNT", "SCVT")
	m := market.Deploy(b, deployer, model.FeePolicy{FeePercent: 1})
	b.Fund(seller, big.NewInt(1_000_000))
	b.Fund(buyer, big.NewInt(1_000_000))
	return &indexerFixture{
		backend: b,
		nft:     registry.NewSession(b, nft),
		market:  market.NewSession(b, m),
	}
}

func (f *indexerFixture) list(t *testing.T, price int64) uint64 {
	t.Helper()
	ctx := context.Background()
	tokenId, _, err := f.nft.Mint(ctx, seller, "ipfs://token")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := f.nft.SetApprovalForAll(ctx, seller, f.market.Market.Address(), true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	itemId, _, err := f.market.CreateItem(ctx, seller, f.nft.NFT.Address(), tokenId, big.NewInt(price))
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return itemId
}

func TestIndexerSync(t *testing.T) {
	ctx := context.Background()
	f := newIndexerFixture(t)
	st := store.NewMemory()

	first := f.list(t, 1000)
	second := f.list(t, 500)
	if _, err := f.market.PurchaseItem(ctx, buyer, first, big.NewInt(1010)); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	// rejected purchases are never mined
	if _, err := f.market.PurchaseItem(ctx, buyer, first, big.NewInt(1010)); !errors.Is(err, model.ErrAlreadySettled) {
		t.Fatalf("expected already settled, got %v", err)
	}

	idx, err := NewIndexer(ctx, f.market.Market.Address(), st, 0)
	if err != nil {
		t.Fatalf("new indexer: %v", err)
	}
	applied, err := idx.Sync(ctx, f.backend)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	head, _ := f.backend.BlockNumber(ctx)
	if uint64(applied) != head || idx.LatestBlockNumber() != head {
		t.Fatalf("applied %d blocks, latest %d, head %d", applied, idx.LatestBlockNumber(), head)
	}

	sold, err := st.GetListing(ctx, idx.Market(), first)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if !sold.Sold || sold.Buyer != normalizeAddress(buyer) || sold.Price != "1000" || sold.SoldHash == "" {
		t.Fatalf("unexpected sold listing %+v", sold)
	}
	open, err := st.GetListing(ctx, idx.Market(), second)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if open.Sold || open.Seller != normalizeAddress(seller) || open.ListedBlock == 0 {
		t.Fatalf("unexpected open listing %+v", open)
	}

	bought, _ := st.ListingsByBuyer(ctx, idx.Market(), buyer.Hex())
	if len(bought) != 1 || bought[0].ItemId != first {
		t.Fatalf("unexpected buyer history %+v", bought)
	}

	// nothing new to apply
	if applied, err := idx.Sync(ctx, f.backend); err != nil || applied != 0 {
		t.Fatalf("second sync applied %d: %v", applied, err)
	}
}

func TestIndexerRecordsBlockTimestamps(t *testing.T) {
	ctx := context.Background()
	f := newIndexerFixture(t)
	st := store.NewMemory()

	listedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	soldAt := listedAt.Add(90 * time.Minute)

	f.backend.WithClock(func() time.Time { return listedAt })
	itemId := f.list(t, 1000)
	f.backend.WithClock(func() time.Time { return soldAt })
	if _, err := f.market.PurchaseItem(ctx, buyer, itemId, big.NewInt(1010)); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	idx, err := NewIndexer(ctx, f.market.Market.Address(), st, 0)
	if err != nil {
		t.Fatalf("new indexer: %v", err)
	}
	if _, err := idx.Sync(ctx, f.backend); err != nil {
		t.Fatalf("sync: %v", err)
	}
	rec, err := st.GetListing(ctx, idx.Market(), itemId)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if rec.ListedTs != uint64(listedAt.Unix()) || rec.SoldTs != uint64(soldAt.Unix()) {
		t.Fatalf("listed_ts=%d sold_ts=%d, expected %d and %d", rec.ListedTs, rec.SoldTs, listedAt.Unix(), soldAt.Unix())
	}
}

func TestIndexerResumesFromCursor(t *testing.T) {
	ctx := context.Background()
	f := newIndexerFixture(t)
	st := store.NewMemory()

	f.list(t, 100)
	idx, _ := NewIndexer(ctx, f.market.Market.Address(), st, 0)
	if _, err := idx.Sync(ctx, f.backend); err != nil {
		t.Fatalf("sync: %v", err)
	}
	latest := idx.LatestBlockNumber()

	resumed, err := NewIndexer(ctx, f.market.Market.Address(), st, 0)
	if err != nil {
		t.Fatalf("new indexer: %v", err)
	}
	if resumed.LatestBlockNumber() != latest {
		t.Fatalf("expected cursor %d, got %d", latest, resumed.LatestBlockNumber())
	}
}

func TestIndexerRejectsOutOfOrderBlock(t *testing.T) {
	ctx := context.Background()
	f := newIndexerFixture(t)
	f.list(t, 100)

	idx, _ := NewIndexer(ctx, f.market.Market.Address(), store.NewMemory(), 0)
	block, err := f.backend.BlockByNumber(ctx, 2)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if err := idx.HandleNewBlock(ctx, block); !errors.Is(err, ErrBlockNumberNotMatch) {
		t.Fatalf("expected block number mismatch, got %v", err)
	}
	if idx.LatestBlockNumber() != 0 {
		t.Fatalf("cursor moved on rejected block")
	}
}

func TestIndexerRebuildsListingFromBought(t *testing.T) {
	ctx := context.Background()
	f := newIndexerFixture(t)
	itemId := f.list(t, 200)
	listedAt, _ := f.backend.BlockNumber(ctx)
	if _, err := f.market.PurchaseItem(ctx, buyer, itemId, big.NewInt(202)); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	// start after the Offered block so only Bought is seen
	st := store.NewMemory()
	idx, _ := NewIndexer(ctx, f.market.Market.Address(), st, listedAt)
	if _, err := idx.Sync(ctx, f.backend); err != nil {
		t.Fatalf("sync: %v", err)
	}
	rec, err := st.GetListing(ctx, idx.Market(), itemId)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if !rec.Sold || rec.Price != "200" || rec.Seller != normalizeAddress(seller) || rec.ListedHash != "" {
		t.Fatalf("unexpected rebuilt listing %+v", rec)
	}
}

func TestIndexerIgnoresOtherMarkets(t *testing.T) {
	ctx := context.Background()
	f := newIndexerFixture(t)
	f.list(t, 100)

	st := store.NewMemory()
	idx, _ := NewIndexer(ctx, common.HexToAddress("0x00000000000000000000000000000000000000ff"), st, 0)
	if _, err := idx.Sync(ctx, f.backend); err != nil {
		t.Fatalf("sync: %v", err)
	}
	recs, _ := st.ListingsBySeller(ctx, idx.Market(), seller.Hex())
	if len(recs) != 0 {
		t.Fatalf("indexed foreign market logs: %+v", recs)
	}
}
