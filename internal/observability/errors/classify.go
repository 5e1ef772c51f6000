// Package errors derives low-cardinality error class names for metric tags
// and failure notifications.
package errors

import (
	goerrors "errors"
	"reflect"
	"strings"
)

// Classify maps err to a stable snake_case type name such as
// "pgconn_pgerror". The chain is unwrapped to the innermost cause first so
// wrapper types do not mask the origin. Returns the empty string for nil.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	for {
		inner := goerrors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.NewReplacer("*", "", ".", "_").Replace(strings.ToLower(t.String()))
	if name == "" {
		return "unknown"
	}
	return name
}
