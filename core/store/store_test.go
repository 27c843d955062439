package store

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"nft-escrow-market/core/model"

	"github.com/ethereum/go-ethereum/common"
)

// freshMarket returns a mixed-case market address no earlier run has used.
func freshMarket() string {
	return common.BigToAddress(big.NewInt(time.Now().UnixNano())).Hex()
}

// testListings runs the listing sequence every Store must satisfy.
func testListings(t *testing.T, s Store, market string) {
	t.Helper()
	ctx := context.Background()

	for i, seller := range []string{"0xaa", "0xbb", "0xaa"} {
		err := s.SaveListing(ctx, &model.ListingRecord{Market: market, ItemId: uint64(3 - i), Seller: seller, Price: "10"})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	// saving the same item again replaces it
	if err := s.SaveListing(ctx, &model.ListingRecord{Market: market, ItemId: 3, Seller: "0xaa", Price: "11", ListedBlock: 5}); err != nil {
		t.Fatalf("re-save: %v", err)
	}
	resaved, err := s.GetListing(ctx, market, 3)
	if err != nil {
		t.Fatalf("get re-saved: %v", err)
	}
	if resaved.Price != "11" || resaved.ListedBlock != 5 {
		t.Fatalf("re-save did not replace the listing: %+v", resaved)
	}

	if _, err := s.GetListing(ctx, market, 9); !errors.Is(err, model.ErrDocumentNotExists) {
		t.Fatalf("expected not exists, got %v", err)
	}

	rec, err := s.GetListing(ctx, common.HexToAddress(market).Hex(), 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Seller != "0xbb" {
		t.Fatalf("unexpected seller %s", rec.Seller)
	}

	if err := s.MarkSold(ctx, market, 7, Sale{Buyer: "0xcc"}); !errors.Is(err, model.ErrDocumentNotExists) {
		t.Fatalf("expected not exists, got %v", err)
	}
	if err := s.MarkSold(ctx, market, 2, Sale{Buyer: "0xCC", TxHash: "0x01", Block: 4, Timestamp: 99}); err != nil {
		t.Fatalf("mark sold: %v", err)
	}
	sold, _ := s.GetListing(ctx, market, 2)
	if !sold.Sold || sold.Buyer != "0xcc" || sold.SoldBlock != 4 || sold.SoldTs != 99 || sold.Seller != "0xbb" {
		t.Fatalf("unexpected sold record %+v", sold)
	}

	bySeller, _ := s.ListingsBySeller(ctx, market, "0xAA")
	if len(bySeller) != 2 || bySeller[0].ItemId != 1 || bySeller[1].ItemId != 3 {
		t.Fatalf("unexpected seller listings %+v", bySeller)
	}
	byBuyer, _ := s.ListingsByBuyer(ctx, market, "0xcc")
	if len(byBuyer) != 1 || byBuyer[0].ItemId != 2 {
		t.Fatalf("unexpected buyer listings %+v", byBuyer)
	}
	other, _ := s.ListingsBySeller(ctx, "0x01", "0xaa")
	if len(other) != 0 {
		t.Fatalf("listings leaked across markets")
	}
}

func testCursor(t *testing.T, s Store, market string) {
	t.Helper()
	ctx := context.Background()
	if _, ok, _ := s.LoadCursor(ctx, market); ok {
		t.Fatalf("cursor should be empty")
	}
	if err := s.SaveCursor(ctx, market, 12); err != nil {
		t.Fatalf("save cursor: %v", err)
	}
	if err := s.SaveCursor(ctx, market, 13); err != nil {
		t.Fatalf("advance cursor: %v", err)
	}
	block, ok, err := s.LoadCursor(ctx, common.HexToAddress(market).Hex())
	if err != nil || !ok || block != 13 {
		t.Fatalf("unexpected cursor %d %v %v", block, ok, err)
	}
}
