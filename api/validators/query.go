package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/surveycash/surveycash-backend/pkg/errors"
)

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// ParseQueryInt reads an optional bounded integer such as ?limit=. A missing
// value yields fallback; anything else outside [lo, hi] is a validation error.
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a whole number").
			WithDetails(map[string]any{"field": key})
	}
	if n < lo || n > hi {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" out of range").
			WithDetails(map[string]any{"field": key, "min": lo, "max": hi})
	}
	return n, nil
}

// ParseQueryBool reads a boolean flag; anything unparseable counts as false.
func ParseQueryBool(r *http.Request, key string) bool {
	on, err := strconv.ParseBool(queryValue(r, key))
	return err == nil && on
}
