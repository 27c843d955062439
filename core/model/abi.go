package model

import (
	"fmt"
	"math/big"
	"strings"

	"nft-escrow-market/utils/must"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const MarketplaceABIJson = `[
{"anonymous":false,"inputs":[{"indexed":false,"internalType":"uint256","name":"itemId","type":"uint256"},{"indexed":true,"internalType":"address","name":"nft","type":"address"},{"indexed":false,"internalType":"uint256","name":"tokenId","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"price","type":"uint256"},{"indexed":true,"internalType":"address","name":"seller","type":"address"}],"name":"Offered","type":"event"},
{"anonymous":false,"inputs":[{"indexed":false,"internalType":"uint256","name":"itemId","type":"uint256"},{"indexed":true,"internalType":"address","name":"nft","type":"address"},{"indexed":false,"internalType":"uint256","name":"tokenId","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"price","type":"uint256"},{"indexed":true,"internalType":"address","name":"seller","type":"address"},{"indexed":true,"internalType":"address","name":"buyer","type":"address"}],"name":"Bought","type":"event"},
{"inputs":[{"internalType":"address","name":"_nft","type":"address"},{"internalType":"uint256","name":"_tokenId","type":"uint256"},{"internalType":"uint256","name":"_price","type":"uint256"}],"name":"createItem","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"uint256","name":"_itemId","type":"uint256"}],"name":"purchaseItem","outputs":[],"stateMutability":"payable","type":"function"},
{"inputs":[{"internalType":"uint256","name":"_itemId","type":"uint256"}],"name":"getTotalCost","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"itemCount","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"","type":"uint256"}],"name":"items","outputs":[{"internalType":"uint256","name":"itemId","type":"uint256"},{"internalType":"address","name":"nft","type":"address"},{"internalType":"uint256","name":"tokenId","type":"uint256"},{"internalType":"uint256","name":"price","type":"uint256"},{"internalType":"address","name":"seller","type":"address"},{"internalType":"bool","name":"sold","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"feePercent","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"feeManagerAcct","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const ERC721ABIJson = `[
{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"from","type":"address"},{"indexed":true,"internalType":"address","name":"to","type":"address"},{"indexed":true,"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"Transfer","type":"event"},
{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"owner","type":"address"},{"indexed":true,"internalType":"address","name":"approved","type":"address"},{"indexed":true,"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"Approval","type":"event"},
{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"owner","type":"address"},{"indexed":true,"internalType":"address","name":"operator","type":"address"},{"indexed":false,"internalType":"bool","name":"approved","type":"bool"}],"name":"ApprovalForAll","type":"event"},
{"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"owner","type":"address"},{"internalType":"address","name":"operator","type":"address"}],"name":"isApprovedForAll","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"name","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

const (
	OfferedEventName        = "Offered"
	BoughtEventName         = "Bought"
	TransferEventName       = "Transfer"
	ApprovalEventName       = "Approval"
	ApprovalForAllEventName = "ApprovalForAll"
)

var (
	MarketplaceABI = must.Must(abi.JSON(strings.NewReader(MarketplaceABIJson)))
	ERC721ABI      = must.Must(abi.JSON(strings.NewReader(ERC721ABIJson)))

	TopicOffered        = EventTopic("Offered(uint256,address,uint256,uint256,address)")
	TopicBought         = EventTopic("Bought(uint256,address,uint256,uint256,address,address)")
	TopicTransfer       = EventTopic("Transfer(address,address,uint256)")
	TopicApproval       = EventTopic("Approval(address,address,uint256)")
	TopicApprovalForAll = EventTopic("ApprovalForAll(address,address,bool)")
)

type OfferedEvent struct {
	ItemId  *big.Int
	Nft     common.Address
	TokenId *big.Int
	Price   *big.Int
	Seller  common.Address
}

type BoughtEvent struct {
	ItemId  *big.Int
	Nft     common.Address
	TokenId *big.Int
	Price   *big.Int
	Seller  common.Address
	Buyer   common.Address
}

type TransferEvent struct {
	From    common.Address
	To      common.Address
	TokenId *big.Int
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// PackOffered encodes the Offered log for a freshly created item.
func PackOffered(item Item) ([]common.Hash, []byte, error) {
	event := MarketplaceABI.Events[OfferedEventName]
	data, err := event.Inputs.NonIndexed().Pack(new(big.Int).SetUint64(item.ItemId), item.TokenId, item.Price)
	if err != nil {
		return nil, nil, fmt.Errorf("pack %s: %w", OfferedEventName, err)
	}
	return []common.Hash{event.ID, addressTopic(item.Nft), addressTopic(item.Seller)}, data, nil
}

// PackBought encodes the Bought log for a settled item.
func PackBought(item Item, buyer common.Address) ([]common.Hash, []byte, error) {
	event := MarketplaceABI.Events[BoughtEventName]
	data, err := event.Inputs.NonIndexed().Pack(new(big.Int).SetUint64(item.ItemId), item.TokenId, item.Price)
	if err != nil {
		return nil, nil, fmt.Errorf("pack %s: %w", BoughtEventName, err)
	}
	return []common.Hash{event.ID, addressTopic(item.Nft), addressTopic(item.Seller), addressTopic(buyer)}, data, nil
}

// PackTransfer encodes an ERC-721 Transfer log; all of its arguments are indexed.
func PackTransfer(from, to common.Address, tokenId *big.Int) []common.Hash {
	return []common.Hash{ERC721ABI.Events[TransferEventName].ID, addressTopic(from), addressTopic(to), common.BigToHash(tokenId)}
}

func PackApproval(owner, approved common.Address, tokenId *big.Int) []common.Hash {
	return []common.Hash{ERC721ABI.Events[ApprovalEventName].ID, addressTopic(owner), addressTopic(approved), common.BigToHash(tokenId)}
}

func PackApprovalForAll(owner, operator common.Address, approved bool) ([]common.Hash, []byte, error) {
	event := ERC721ABI.Events[ApprovalForAllEventName]
	data, err := event.Inputs.NonIndexed().Pack(approved)
	if err != nil {
		return nil, nil, fmt.Errorf("pack %s: %w", ApprovalForAllEventName, err)
	}
	return []common.Hash{event.ID, addressTopic(owner), addressTopic(operator)}, data, nil
}

// ParseEventLog decodes both the data section and the indexed topics of log
// into out, which must be a pointer to a struct whose fields follow the ABI
// argument names.
func ParseEventLog(parsedAbi abi.ABI, eventName string, logData *types.Log, out interface{}) error {
	event, exists := parsedAbi.Events[eventName]
	if !exists {
		return fmt.Errorf("event '%s' not found", eventName)
	}
	if len(logData.Topics) == 0 || logData.Topics[0] != event.ID {
		return fmt.Errorf("log is not a '%s' event", eventName)
	}

	if len(logData.Data) > 0 {
		if err := parsedAbi.UnpackIntoInterface(out, eventName, logData.Data); err != nil {
			return fmt.Errorf("failed to unpack event data: %w", err)
		}
	}

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopics(out, indexed, logData.Topics[1:]); err != nil {
		return fmt.Errorf("failed to parse event topics: %w", err)
	}
	return nil
}

func ParseOfferedEvent(logData *types.Log) (*OfferedEvent, error) {
	var event OfferedEvent
	if err := ParseEventLog(MarketplaceABI, OfferedEventName, logData, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func ParseBoughtEvent(logData *types.Log) (*BoughtEvent, error) {
	var event BoughtEvent
	if err := ParseEventLog(MarketplaceABI, BoughtEventName, logData, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func ParseTransferEvent(logData *types.Log) (*TransferEvent, error) {
	var event TransferEvent
	if err := ParseEventLog(ERC721ABI, TransferEventName, logData, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
