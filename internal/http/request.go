package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"expensetrack/internal/core"
)

const maxBodyBytes = 1 << 20

// requestError marks a body or parameter the handler could not read at all.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return "invalid request: " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// decodeJSON reads one JSON value from the request body into dst. Unknown
// fields are ignored. Domain validation errors raised while decoding, such
// as a malformed date, are returned unwrapped.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, core.ErrInvalidDate) || errors.Is(err, core.ErrInvalidAmount) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return &requestError{errors.New("empty body")}
		}
		return &requestError{err}
	}
	if dec.More() {
		return &requestError{errors.New("trailing data after JSON body")}
	}
	return nil
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// pathValue returns the sanitized path wildcard name.
func pathValue(r *http.Request, name string) string {
	return sanitizeInput(r.PathValue(name))
}

// queryBool reads an optional boolean query parameter; absent means false.
func queryBool(r *http.Request, name string) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &requestError{fmt.Errorf("%s: %q is not a boolean", name, v)}
	}
	return b, nil
}

// dateOf returns the zero date, which the ledger reads as today, when the
// request omitted one.
func dateOf(d *core.Date) core.Date {
	if d == nil {
		return core.Date{}
	}
	return *d
}
