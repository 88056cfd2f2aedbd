package diag

import "go.uber.org/multierr"

// ErrorList accumulates CodegenErrors across one emission. Per spec §7,
// "errors are collected into a per-emission list, not thrown"; this type
// is that list, backed by go.uber.org/multierr so the accumulated errors
// compose with anything else in the call chain that returns a plain
// `error` (e.g. an io.Writer failure while rendering the final module).
type ErrorList struct {
	err error
}

// Add appends one or more CodegenErrors. Nil entries are ignored.
func (l *ErrorList) Add(errs ...*CodegenError) {
	for _, e := range errs {
		if e == nil {
			continue
		}
		l.err = multierr.Append(l.err, e)
	}
}

// AddErr appends a plain error (e.g. from an io.Writer), preserved
// alongside CodegenErrors without being forced into the taxonomy.
func (l *ErrorList) AddErr(err error) {
	if err != nil {
		l.err = multierr.Append(l.err, err)
	}
}

// Empty reports whether no errors were collected; per spec §7, "a
// module emission is successful only when the error list is empty".
func (l *ErrorList) Empty() bool {
	return l.err == nil
}

// Errors returns the individual errors in append order.
func (l *ErrorList) Errors() []error {
	return multierr.Errors(l.err)
}

// CodegenErrors returns only the CodegenError-typed entries, in order.
func (l *ErrorList) CodegenErrors() []*CodegenError {
	var out []*CodegenError
	for _, e := range l.Errors() {
		if ce, ok := e.(*CodegenError); ok {
			out = append(out, ce)
		}
	}
	return out
}

// Err returns the accumulated error, or nil if none were collected.
func (l *ErrorList) Err() error {
	return l.err
}
