package clusters

import (
	"errors"
	"fmt"

	"github.com/backkem/matter-switch/pkg/datamodel"
	"github.com/backkem/matter-switch/pkg/wire"
)

// Command field errors.
var (
	ErrInvalidRequest = errors.New("invalid command request")
	ErrMissingField   = errors.New("missing required field")
)

// DecodeFields decodes command fields into v. Empty fields are rejected
// with datamodel.ErrInvalidCommand.
func DecodeFields(fields []byte, v any) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: %w", datamodel.ErrInvalidCommand, ErrMissingField)
	}
	if err := wire.Unmarshal(fields, v); err != nil {
		return fmt.Errorf("%w: %w: %v", datamodel.ErrInvalidCommand, ErrInvalidRequest, err)
	}
	return nil
}

// EncodeFields encodes a command request struct. A nil request encodes to
// no fields.
func EncodeFields(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return wire.Marshal(v)
}
