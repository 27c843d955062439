package model

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Keccak256 hashes the concatenation of data with the legacy Keccak-256 used by
// the EVM.
func Keccak256(data ...[]byte) common.Hash {
	hasher := sha3.NewLegacyKeccak256()
	for _, b := range data {
		hasher.Write(b)
	}
	var hash common.Hash
	hasher.Sum(hash[:0])
	return hash
}

// EventTopic returns the topic0 of an event signature such as
// "Transfer(address,address,uint256)".
func EventTopic(signature string) common.Hash {
	return Keccak256([]byte(signature))
}
