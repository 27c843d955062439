package model

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const EtherDecimals = 18

// ParseEther converts a decimal ether amount such as "2.02" into wei.
func ParseEther(value string) (*big.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("parse ether %q: %w", value, err)
	}
	wei := d.Shift(EtherDecimals)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("parse ether %q: more than %d decimals", value, EtherDecimals)
	}
	return wei.BigInt(), nil
}

// FormatEther renders wei as a decimal ether string without trailing zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -EtherDecimals).String()
}

// ParseWei parses a base-10 wei amount.
func ParseWei(value string) (*big.Int, error) {
	wei, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid wei amount %q", value)
	}
	return wei, nil
}
