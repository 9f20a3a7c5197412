package orders

import "errors"

var (
	// ErrNotFound covers both a truly missing row and a row owned by a
	// different actor partition. The two are deliberately
	// indistinguishable so existence never leaks across actors.
	ErrNotFound = errors.New("order not found")

	ErrPersistence = errors.New("order persistence failed")
	ErrEmptyItems  = errors.New("order has no items")
)
