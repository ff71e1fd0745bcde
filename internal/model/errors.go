package model

import (
	"errors"
	"fmt"
)

// Категории ошибок. Конкретные ошибки оборачивают одну из них.
var (
	ErrValidation       = errors.New("validation failed")
	ErrAuthorization    = errors.New("not allowed")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

var (
	ErrInvalidVoucher     = fmt.Errorf("%w: invalid voucher handle", ErrValidation)
	ErrInvalidAmount      = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidQuantity    = fmt.Errorf("%w: invalid quantity", ErrValidation)
	ErrInvalidLanguage    = fmt.Errorf("%w: unsupported language", ErrValidation)
	ErrEmptyCart          = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrAddressRequired    = fmt.Errorf("%w: delivery address required", ErrValidation)
	ErrEmptyMessage       = fmt.Errorf("%w: empty message", ErrValidation)
	ErrUnexpectedInput    = fmt.Errorf("%w: no input expected", ErrValidation)
	ErrVerificationClosed = fmt.Errorf("%w: verification not available in current status", ErrValidation)

	ErrNotAllowed     = fmt.Errorf("%w: administrator only", ErrAuthorization)
	ErrNotAdmitted    = fmt.Errorf("%w: account is not admitted", ErrAuthorization)
	ErrAwaitingReview = fmt.Errorf("%w: account is awaiting review", ErrAuthorization)

	ErrAccountNotFound = fmt.Errorf("%w: account", ErrNotFound)
	ErrClaimNotFound   = fmt.Errorf("%w: claim", ErrNotFound)
	ErrClaimDecided    = fmt.Errorf("%w: claim already decided", ErrNotFound)
	ErrItemNotFound    = fmt.Errorf("%w: item", ErrNotFound)
	ErrOrderNotFound   = fmt.Errorf("%w: order", ErrNotFound)
	ErrOrderCompleted  = fmt.Errorf("%w: order already completed", ErrNotFound)

	ErrStoreOffline = fmt.Errorf("%w: storefront is offline", ErrStoreUnavailable)
)
