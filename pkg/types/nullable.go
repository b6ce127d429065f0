// Package types holds small value types shared by the client and the reference backend.
package types

// Nullable is implemented by values that distinguish "unset" from a zero value.
type Nullable interface {
	IsNil() bool
}
