package model

import "errors"

// Error kinds surfaced by the ingestor and the ledger. Callers match them
// with errors.Is; wrapped errors keep the kind.
var (
	ErrInvalidSymbol        = errors.New("invalid stock symbol")
	ErrInvalidAction        = errors.New("invalid action")
	ErrInvalidQuantity      = errors.New("quantity must be a positive integer")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient stocks to sell")
	ErrFeedDecode           = errors.New("malformed tick")
	ErrUnknownAccount       = errors.New("account not found")
)
