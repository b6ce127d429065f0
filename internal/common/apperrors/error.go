// Package apperrors provides chainable application errors that carry an HTTP status code
// and a set of wrapped causes. Sentinel errors are declared once per package and refined
// with New/Msg/Err at the point of failure, so callers can match them with errors.Is and
// extract typed causes with errors.As.
package apperrors

// Error is the application error interface. Every refining method returns a new Error
// and leaves the receiver untouched, so package-level sentinels are safe to share.
type Error interface {
	error
	Unwrap() error // base error, for errors.Is / errors.As

	New(msg string) Error                  // fresh error that uses the current one as its base
	Msg(msg string) Error                  // new message, current error kept as a cause
	MsgErr(msg string, err ...error) Error // new message plus extra causes
	Err(err ...error) Error                // same message, extra causes attached
	SetExpandError(bool) Error             // ErrorAll includes causes when set
	SetStatusCode(int) Error               // HTTP status associated with the error
	StatusCode() int
	Prefix(string) Error
	Suffix(string) Error
	ErrorAll() string  // message plus causes when expansion is enabled
	UnwrapAll() []error // causes in the order they were attached
}
