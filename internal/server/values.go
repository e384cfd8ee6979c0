package server

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// inferValue converts a JSON scalar into a typed property value. Integers
// become int64 or *big.Int when they overflow, other numbers float64
func inferValue(v gjson.Result) (any, error) {
	switch v.Type {
	case gjson.String:
		return v.String(), nil
	case gjson.True, gjson.False:
		return v.Bool(), nil
	case gjson.Number:
		return inferNumber(v)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedValue, v.Raw)
	}
}

func inferNumber(v gjson.Result) (any, error) {
	raw := v.Raw
	if strings.ContainsAny(raw, ".eE") {
		return v.Float(), nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i, nil
	}
	if i, ok := new(big.Int).SetString(raw, 10); ok {
		return i, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedValue, raw)
}

// valueText returns the text a type tag is applied to. Numbers keep their
// literal form so that precision survives
func valueText(v gjson.Result) (string, error) {
	switch v.Type {
	case gjson.String:
		return v.String(), nil
	case gjson.Number, gjson.True, gjson.False:
		return v.Raw, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedValue, v.Raw)
	}
}
