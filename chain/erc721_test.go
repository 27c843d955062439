package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"nft-escrow-market/core/model"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// fakeCaller answers view calls from canned results keyed by method name.
type fakeCaller struct {
	abi     abi.ABI
	results map[string][]interface{}
	code    []byte
}

func (f *fakeCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return f.code, nil
}

func (f *fakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	method, err := f.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	values, ok := f.results[method.Name]
	if !ok {
		return nil, nil
	}
	return method.Outputs.Pack(values...)
}

var (
	collection = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	marketAddr = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	holder     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func TestERC721Caller(t *testing.T) {
	ctx := context.Background()
	c := NewERC721Caller(collection, &fakeCaller{
		abi:  model.ERC721ABI,
		code: []byte{0x60},
		results: map[string][]interface{}{
			"ownerOf":          {holder},
			"isApprovedForAll": {true},
			"tokenURI":         {"Sample URI"},
		},
	})

	owner, err := c.OwnerOf(ctx, big.NewInt(1))
	if err != nil || owner != holder {
		t.Fatalf("owner %s: %v", owner.Hex(), err)
	}
	approved, err := c.IsApprovedForAll(ctx, holder, marketAddr)
	if err != nil || !approved {
		t.Fatalf("approved %v: %v", approved, err)
	}
	uri, err := c.TokenURI(ctx, big.NewInt(1))
	if err != nil || uri != "Sample URI" {
		t.Fatalf("uri %q: %v", uri, err)
	}
}

func TestMarketCaller(t *testing.T) {
	ctx := context.Background()
	price, _ := model.ParseEther("2")
	c := NewMarketCaller(marketAddr, &fakeCaller{
		abi:  model.MarketplaceABI,
		code: []byte{0x60},
		results: map[string][]interface{}{
			"itemCount":    {big.NewInt(1)},
			"feePercent":   {big.NewInt(1)},
			"getTotalCost": {model.FeePolicy{FeePercent: 1}.TotalCost(price)},
			"items":        {big.NewInt(1), collection, big.NewInt(7), price, holder, false},
		},
	})

	count, err := c.ItemCount(ctx)
	if err != nil || count != 1 {
		t.Fatalf("count %d: %v", count, err)
	}
	fee, err := c.FeePercent(ctx)
	if err != nil || fee != 1 {
		t.Fatalf("fee %d: %v", fee, err)
	}
	total, err := c.GetTotalCost(ctx, 1)
	if err != nil || model.FormatEther(total) != "2.02" {
		t.Fatalf("total %v: %v", total, err)
	}
	item, err := c.Item(ctx, 1)
	if err != nil {
		t.Fatalf("item: %v", err)
	}
	if item.Nft != collection || item.TokenId.Int64() != 7 || item.Seller != holder || item.Sold {
		t.Fatalf("unexpected item %+v", item)
	}
}

func TestMarketCallerMissingItem(t *testing.T) {
	c := NewMarketCaller(marketAddr, &fakeCaller{
		abi:  model.MarketplaceABI,
		code: []byte{0x60},
		results: map[string][]interface{}{
			"items": {big.NewInt(0), common.Address{}, big.NewInt(0), big.NewInt(0), common.Address{}, false},
		},
	})
	if _, err := c.Item(context.Background(), 5); !errors.Is(err, model.ErrListingNotFound) {
		t.Fatalf("expected listing not found, got %v", err)
	}
}

// routedCaller sends each call to the fake bound at the call's address.
type routedCaller map[common.Address]*fakeCaller

func (r routedCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	if f, ok := r[contract]; ok {
		return f.CodeAt(ctx, contract, blockNumber)
	}
	return nil, nil
}

func (r routedCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f, ok := r[*call.To]; ok {
		return f.CallContract(ctx, call, blockNumber)
	}
	return nil, nil
}

func TestDescribeMarketReportsTokenHolder(t *testing.T) {
	price, _ := model.ParseEther("2")
	caller := routedCaller{
		marketAddr: {
			abi:  model.MarketplaceABI,
			code: []byte{0x60},
			results: map[string][]interface{}{
				"itemCount":  {big.NewInt(3)},
				"feePercent": {big.NewInt(1)},
				"items":      {big.NewInt(3), collection, big.NewInt(7), price, holder, false},
			},
		},
		collection: {
			abi:     model.ERC721ABI,
			code:    []byte{0x60},
			results: map[string][]interface{}{"ownerOf": {marketAddr}},
		},
	}

	summary, err := DescribeMarket(context.Background(), marketAddr, caller)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if summary.ItemCount != 3 || summary.FeePercent != 1 || summary.Latest == nil || summary.Latest.ItemId != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Holder != marketAddr {
		t.Fatalf("expected the marketplace to hold the listed token, got %s", summary.Holder.Hex())
	}

	delete(caller, collection)
	if _, err := DescribeMarket(context.Background(), marketAddr, caller); !errors.Is(err, ErrNoCode) {
		t.Fatalf("expected no code at the registry, got %v", err)
	}
}

func TestDescribeEmptyMarket(t *testing.T) {
	caller := routedCaller{
		marketAddr: {
			abi:  model.MarketplaceABI,
			code: []byte{0x60},
			results: map[string][]interface{}{
				"itemCount":  {big.NewInt(0)},
				"feePercent": {big.NewInt(2)},
			},
		},
	}
	summary, err := DescribeMarket(context.Background(), marketAddr, caller)
	if err != nil || summary.Latest != nil || summary.FeePercent != 2 {
		t.Fatalf("unexpected summary %+v: %v", summary, err)
	}
}

func TestCallerNoCode(t *testing.T) {
	c := NewMarketCaller(marketAddr, &fakeCaller{abi: model.MarketplaceABI})
	if _, err := c.ItemCount(context.Background()); !errors.Is(err, ErrNoCode) {
		t.Fatalf("expected no code, got %v", err)
	}
}

func TestConvertBlockToChainBlock(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := types.LatestSignerForChainID(big.NewInt(42262))
	tx := types.MustSignNewTx(key, signer, &types.LegacyTx{
		Nonce:    0,
		To:       &marketAddr,
		Value:    big.NewInt(1010),
		Gas:      100000,
		GasPrice: big.NewInt(1),
		Data:     []byte{0xde, 0xad},
	})

	header := &types.Header{Number: big.NewInt(12), Time: 1700000000}
	block := types.NewBlockWithHeader(header).WithBody([]*types.Transaction{tx}, nil)
	receipt := &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash(), BlockNumber: big.NewInt(12)}

	cb := ConvertBlockToChainBlock(block, []*types.Receipt{receipt})
	if cb.Number != 12 || cb.Timestamp != 1700000000 || cb.Hash != block.Hash().Hex() {
		t.Fatalf("unexpected block %+v", cb)
	}
	if len(cb.Txs) != 1 || len(cb.Receipts) != 1 {
		t.Fatalf("unexpected contents %d txs, %d receipts", len(cb.Txs), len(cb.Receipts))
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	got := cb.Txs[0]
	if got.From != from.Hex() || got.To != marketAddr.Hex() || got.Value != "1010" || got.Input != "0xdead" {
		t.Fatalf("unexpected tx %+v", got)
	}
	if !cb.Receipts[0].Succeeded() || cb.Receipts[0].Timestamp != 1700000000 {
		t.Fatalf("unexpected receipt %+v", cb.Receipts[0])
	}
}
