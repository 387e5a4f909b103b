package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnsupportedMethod is returned when an Init names a verb outside Methods.
var ErrUnsupportedMethod = errors.New("unsupported HTTP method")

// Methods is the set of HTTP verbs a Resource will send.
var Methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodHead,
	http.MethodOptions,
	http.MethodTrace,
	http.MethodConnect,
	http.MethodPatch,
}

// IsSupportedMethod reports whether method (in any case) is one of Methods.
func IsSupportedMethod(method string) bool {
	m := strings.ToUpper(method)
	for _, supported := range Methods {
		if m == supported {
			return true
		}
	}
	return false
}

// normalizeMethod upper-cases method and defaults an empty one to GET.
func normalizeMethod(method string) (string, error) {
	if method == "" {
		return http.MethodGet, nil
	}
	if !IsSupportedMethod(method) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	return strings.ToUpper(method), nil
}
