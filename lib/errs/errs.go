package errs

import "errors"

var ErrNotFound = errors.New("not found")

var ErrAlreadyExists = errors.New("already exists")

var ErrInternal = errors.New("internal error")

// Session errors, surfaced to the caller for user-facing display.
var ErrInvalidCredentials = errors.New("invalid credentials")

var ErrEmailInUse = errors.New("email already in use")

var ErrEmailNotFound = errors.New("email not found")

var ErrInvalidToken = errors.New("invalid token")

// Portfolio errors. The rejected operation must leave the ledger unchanged.
var ErrInvalidQuantity = errors.New("invalid quantity")

var ErrInsufficientHolding = errors.New("insufficient holding")

var ErrSubscriptionRequired = errors.New("free transaction limit reached, subscription required")

// ErrMarketDataUnavailable degrades valuations to cost basis, it never
// blocks the ledger.
var ErrMarketDataUnavailable = errors.New("market data unavailable")

var ErrPaymentDeclined = errors.New("payment declined")
