package model

import "errors"

var (
	ErrInvalidPrice        = errors.New("price must be greater than zero")
	ErrTransferRejected    = errors.New("asset transfer rejected")
	ErrListingNotFound     = errors.New("item doesn't exist")
	ErrAlreadySettled      = errors.New("item has already been sold")
	ErrInsufficientPayment = errors.New("amount is not enough to cover total cost")

	ErrDocumentNotExists = errors.New("document not exists")
)

// ErrorCode names the rejection kind carried by err, or "" when err is not one
// of the marketplace rejections.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPrice):
		return "InvalidPrice"
	case errors.Is(err, ErrTransferRejected):
		return "TransferRejected"
	case errors.Is(err, ErrListingNotFound):
		return "ListingNotFound"
	case errors.Is(err, ErrAlreadySettled):
		return "AlreadySettled"
	case errors.Is(err, ErrInsufficientPayment):
		return "InsufficientPayment"
	}
	return ""
}
