package domain

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindNotFound
	KindInsufficientStock
	KindAccessDenied
	KindIllegalTransition
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindAccessDenied:
		return "access_denied"
	case KindIllegalTransition:
		return "illegal_transition"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is the error type returned by every storefront operation. Two errors
// are considered equal by errors.Is when their codes match, so callers can
// compare against the sentinels below even when product details are attached.
type Error struct {
	Kind        Kind
	Code        string
	Message     string
	ProductID   string
	ProductName string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrInvalidQuantity      = &Error{Kind: KindInvalidInput, Code: "INVALID_QUANTITY", Message: "Invalid product or quantity"}
	ErrInvalidAddress       = &Error{Kind: KindInvalidInput, Code: "INVALID_ADDRESS", Message: "Complete shipping address is required"}
	ErrInvalidPaymentMethod = &Error{Kind: KindInvalidInput, Code: "INVALID_PAYMENT_METHOD", Message: "Invalid payment method"}
	ErrInvalidStatus        = &Error{Kind: KindInvalidInput, Code: "INVALID_STATUS", Message: "Invalid status"}
	ErrInvalidPage          = &Error{Kind: KindInvalidInput, Code: "INVALID_PAGE", Message: "Invalid pagination parameters"}
	ErrEmptyCart            = &Error{Kind: KindInvalidInput, Code: "EMPTY_CART", Message: "Cart is empty"}
	ErrCartFull             = &Error{Kind: KindInvalidInput, Code: "CART_FULL", Message: "Cart cannot hold more products"}
	ErrProductUnavailable   = &Error{Kind: KindInvalidInput, Code: "PRODUCT_UNAVAILABLE", Message: "Some products in cart are no longer available"}
	ErrProductNotFound      = &Error{Kind: KindNotFound, Code: "PRODUCT_NOT_FOUND", Message: "Product not found"}
	ErrLineNotFound         = &Error{Kind: KindNotFound, Code: "LINE_NOT_FOUND", Message: "Item not found in cart"}
	ErrOrderNotFound        = &Error{Kind: KindNotFound, Code: "ORDER_NOT_FOUND", Message: "Order not found"}
	ErrInsufficientStock    = &Error{Kind: KindInsufficientStock, Code: "INSUFFICIENT_STOCK", Message: "Insufficient stock available"}
	ErrAccessDenied         = &Error{Kind: KindAccessDenied, Code: "ACCESS_DENIED", Message: "Access denied"}
	ErrIllegalTransition    = &Error{Kind: KindIllegalTransition, Code: "ILLEGAL_TRANSITION", Message: "Order cannot be moved to the requested state"}
	ErrOrderCodeTaken       = &Error{Kind: KindConflict, Code: "ORDER_CODE_TAKEN", Message: "Order code already exists"}
	ErrConcurrentUpdate     = &Error{Kind: KindConflict, Code: "CONCURRENT_UPDATE", Message: "Resource was modified concurrently, retry"}
	ErrCheckoutInProgress   = &Error{Kind: KindConflict, Code: "CHECKOUT_IN_PROGRESS", Message: "A checkout with this idempotency key is in progress"}
)

// InsufficientStock names the product whose available quantity could not
// cover the request.
func InsufficientStock(productID, productName string) error {
	msg := ErrInsufficientStock.Message
	if productName != "" {
		msg = fmt.Sprintf("Insufficient stock for %s", productName)
	}
	return &Error{
		Kind:        KindInsufficientStock,
		Code:        ErrInsufficientStock.Code,
		Message:     msg,
		ProductID:   productID,
		ProductName: productName,
	}
}

// IllegalTransition describes a refused status change.
func IllegalTransition(from, to string) error {
	return &Error{
		Kind:    KindIllegalTransition,
		Code:    ErrIllegalTransition.Code,
		Message: fmt.Sprintf("Order cannot move from %s to %s", from, to),
	}
}

// Internal wraps an unexpected failure. The message stays generic; the cause
// is only visible through Unwrap and logs.
func Internal(op string, err error) error {
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: op, Err: err}
}

// KindOf classifies err. Anything that is not a *Error is Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage is the text safe to return to a client.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "Server error"
}
