package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"nft-escrow-market/core/model"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNoCode = errors.New("no contract code at given address")
)

// boundCaller packs a view call against one contract and unpacks the result.
type boundCaller struct {
	address common.Address
	abi     abi.ABI
	caller  bind.ContractCaller
}

func (c *boundCaller) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	output, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(output) == 0 {
		code, err := c.caller.CodeAt(ctx, c.address, nil)
		if err != nil {
			return nil, err
		}
		if len(code) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoCode, c.address.Hex())
		}
	}
	res, err := c.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return res, nil
}

// ERC721Caller reads a deployed asset registry.
type ERC721Caller struct {
	boundCaller
}

func NewERC721Caller(address common.Address, caller bind.ContractCaller) *ERC721Caller {
	return &ERC721Caller{boundCaller{address: address, abi: model.ERC721ABI, caller: caller}}
}

func (c *ERC721Caller) OwnerOf(ctx context.Context, tokenId *big.Int) (common.Address, error) {
	out, err := c.call(ctx, "ownerOf", tokenId)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (c *ERC721Caller) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	out, err := c.call(ctx, "isApprovedForAll", owner, operator)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *ERC721Caller) TokenURI(ctx context.Context, tokenId *big.Int) (string, error) {
	out, err := c.call(ctx, "tokenURI", tokenId)
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// MarketCaller reads a deployed marketplace.
type MarketCaller struct {
	boundCaller
}

func NewMarketCaller(address common.Address, caller bind.ContractCaller) *MarketCaller {
	return &MarketCaller{boundCaller{address: address, abi: model.MarketplaceABI, caller: caller}}
}

func (c *MarketCaller) ItemCount(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, "itemCount")
	if err != nil {
		return 0, err
	}
	return (*abi.ConvertType(out[0], new(*big.Int)).(**big.Int)).Uint64(), nil
}

func (c *MarketCaller) FeePercent(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, "feePercent")
	if err != nil {
		return 0, err
	}
	return (*abi.ConvertType(out[0], new(*big.Int)).(**big.Int)).Uint64(), nil
}

func (c *MarketCaller) GetTotalCost(ctx context.Context, itemId uint64) (*big.Int, error) {
	out, err := c.call(ctx, "getTotalCost", new(big.Int).SetUint64(itemId))
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *MarketCaller) Item(ctx context.Context, itemId uint64) (model.Item, error) {
	out, err := c.call(ctx, "items", new(big.Int).SetUint64(itemId))
	if err != nil {
		return model.Item{}, err
	}
	if len(out) != 6 {
		return model.Item{}, fmt.Errorf("unpack items: got %d values", len(out))
	}
	id := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	item := model.Item{
		ItemId:  id.Uint64(),
		Nft:     *abi.ConvertType(out[1], new(common.Address)).(*common.Address),
		TokenId: *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		Price:   *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		Seller:  *abi.ConvertType(out[4], new(common.Address)).(*common.Address),
		Sold:    *abi.ConvertType(out[5], new(bool)).(*bool),
	}
	if item.ItemId == 0 {
		return model.Item{}, fmt.Errorf("%w: %d", model.ErrListingNotFound, itemId)
	}
	return item, nil
}

// MarketSummary is what a deployed marketplace reports about itself. Latest is
// nil when nothing has been listed; Holder owns Latest's token right now.
type MarketSummary struct {
	ItemCount  uint64
	FeePercent uint64
	Latest     *model.Item
	Holder     common.Address
}

// DescribeMarket reads the marketplace at market and the registry of its most
// recent listing.
func DescribeMarket(ctx context.Context, market common.Address, caller bind.ContractCaller) (MarketSummary, error) {
	mc := NewMarketCaller(market, caller)
	var (
		summary MarketSummary
		err     error
	)
	if summary.ItemCount, err = mc.ItemCount(ctx); err != nil {
		return MarketSummary{}, fmt.Errorf("item count: %w", err)
	}
	if summary.FeePercent, err = mc.FeePercent(ctx); err != nil {
		return MarketSummary{}, fmt.Errorf("fee percent: %w", err)
	}
	if summary.ItemCount == 0 {
		return summary, nil
	}
	item, err := mc.Item(ctx, summary.ItemCount)
	if err != nil {
		return MarketSummary{}, fmt.Errorf("item %d: %w", summary.ItemCount, err)
	}
	summary.Latest = &item
	if summary.Holder, err = NewERC721Caller(item.Nft, caller).OwnerOf(ctx, item.TokenId); err != nil {
		return MarketSummary{}, fmt.Errorf("owner of token %s: %w", item.TokenId, err)
	}
	return summary, nil
}
