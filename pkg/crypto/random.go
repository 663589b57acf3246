package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// ErrRandomSource is returned when the random source fails to deliver bytes.
var ErrRandomSource = errors.New("crypto: random source failure")

// RandomBytes reads exactly n bytes from r. A nil reader selects crypto/rand.
func RandomBytes(r io.Reader, n int) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRandomSource, err)
	}
	return b, nil
}
