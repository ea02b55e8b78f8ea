// Package derrors provides the error-wrapping idiom used throughout this
// module: a function wraps its own error with operation-identifying context
// on the way out, so a chain of wrapped errors reads like a stack trace of
// call sites rather than a bare message.
package derrors

import "fmt"

// Wrap adds context to the error pointed to by errp, if that error is
// non-nil. Call via:
//
//	func f(ctx context.Context, arg string) (err error) {
//		defer derrors.Wrap(&err, "f(%q)", arg)
//		...
//	}
func Wrap(errp *error, format string, args ...any) {
	if *errp == nil {
		return
	}
	*errp = fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), *errp)
}
