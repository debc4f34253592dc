package model

import "errors"

var (
	ErrDataUnavailable      = errors.New("market data unavailable")
	ErrInsufficientHistory  = errors.New("insufficient candle history")
	ErrConfiguration        = errors.New("configuration error")
	ErrTransientFetch       = errors.New("transient fetch error")
	ErrTransientPersistence = errors.New("transient persistence error")
)
