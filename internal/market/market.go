// Package market parses the records returned by the lending contract, its price oracle and the
// exchange into the typed, decimal-normalized structures the engines consume. Records are
// decoded into raw structs first and validated before any arithmetic sees them; a missing or
// malformed field is an error, never a zero.
package market

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidRecord   = errors.New("invalid ledger record")
	ErrAccountNotFound = errors.New("account not found")
)

var validate = validator.New()

// matchName lets one raw struct accept snake_case, camelCase and PascalCase keys.
func matchName(mapKey, fieldName string) bool {
	return normalizeKey(mapKey) == normalizeKey(fieldName)
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(s))
}

// DecodeJSON unmarshals a contract view result keeping numbers as json.Number, so large
// integers never pass through float64.
func DecodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return v, nil
}

// decodeRecord fills out from a generic record and validates it.
func decodeRecord(record interface{}, out interface{}, what string) error {
	if record == nil {
		return fmt.Errorf("%w: %s is null", ErrInvalidRecord, what)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		MatchName:        matchName,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder for %s: %w", what, err)
	}
	if err := dec.Decode(record); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRecord, what, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRecord, what, err)
	}
	return nil
}
