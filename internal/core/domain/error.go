package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInternal = errors.New("internal error")

	// * Data errors.
	ErrDataNotFound     = errors.New("data not found")
	ErrConflictingData  = errors.New("data conflicts with existing data in unique column")
	ErrConcurrentUpdate = errors.New("data was modified concurrently, retry from a fresh read")

	// * Communication errors.
	ErrBadRequest       = errors.New("error parsing request")
	ErrInvalidSignature = errors.New("payment callback signature is invalid")

	// * Authority errors.
	ErrTokenCreation              = errors.New("error creating token")
	ErrExpiredToken               = errors.New("access token has expired")
	ErrInvalidToken               = errors.New("access token is invalid")
	ErrEmptyAuthorizationHeader   = errors.New("authorization header is not provided")
	ErrInvalidAuthorizationHeader = errors.New("authorization header format is invalid")
	ErrInvalidAuthorizationType   = errors.New("authorization type is not supported")
	ErrUnauthorized               = errors.New("user is unauthorized to access the resource")
	ErrForbidden                  = errors.New("user is forbidden to access the resource")
	ErrInvalidOTP                 = errors.New("one-time passcode is invalid or expired")

	// * Business errors.
	ErrInsufficientInventory  = errors.New("book inventory is not enough")
	ErrConsistencyData        = errors.New("order status does not allow this operation")
	ErrUnrecognizedStatusCode = errors.New("payment gateway status code is not recognized")
	ErrBadISBN                = errors.New("isbn is not valid")
)

// InsufficientInventoryError names the book that could not cover a line item.
type InsufficientInventoryError struct {
	ISBN string
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("book %s: %s", e.ISBN, ErrInsufficientInventory)
}

func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}

func NewInsufficientInventory(isbn string) error {
	return &InsufficientInventoryError{ISBN: isbn}
}
