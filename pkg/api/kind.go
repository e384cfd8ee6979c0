package api

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

type (
	// Kind names one of the supported property value types
	Kind string

	// KindParser converts the textual form of a value into its typed form
	KindParser func(string) (any, error)

	// KindFormatter renders a typed value back into its textual form
	KindFormatter func(any) string

	kindDef struct {
		parse  KindParser
		format KindFormatter
	}
)

const (
	KindString         Kind = "string"
	KindBoolean        Kind = "boolean"
	KindByte           Kind = "byte"
	KindShort          Kind = "short"
	KindInt            Kind = "int"
	KindLong           Kind = "long"
	KindFloat          Kind = "float"
	KindDouble         Kind = "double"
	KindBigInteger     Kind = "big-integer"
	KindBigDecimal     Kind = "big-decimal"
	KindDate           Kind = "date"
	KindLocalTime      Kind = "local-time"
	KindLocalDate      Kind = "local-date"
	KindLocalDateTime  Kind = "local-date-time"
	KindInstant        Kind = "instant"
	KindOffsetDateTime Kind = "offset-date-time"
	KindZonedDateTime  Kind = "zoned-date-time"
)

var (
	ErrUnknownKind  = errors.New("unknown value type")
	ErrInvalidValue = errors.New("invalid value")
)

var kinds = map[Kind]kindDef{
	KindString:         {parseString, formatNatural},
	KindBoolean:        {parseBoolean, formatNatural},
	KindByte:           {parseIntBits(8), formatNatural},
	KindShort:          {parseIntBits(16), formatNatural},
	KindInt:            {parseIntBits(32), formatNatural},
	KindLong:           {parseIntBits(64), formatNatural},
	KindFloat:          {parseFloatBits(32), formatNatural},
	KindDouble:         {parseFloatBits(64), formatNatural},
	KindBigInteger:     {parseBigInteger, formatNatural},
	KindBigDecimal:     {parseBigDecimal, formatNatural},
	KindDate:           {parseDate, formatDate},
	KindLocalTime:      {parseLocalTime, formatNatural},
	KindLocalDate:      {parseLocalDate, formatNatural},
	KindLocalDateTime:  {parseLocalDateTime, formatNatural},
	KindInstant:        {parseInstant, timeFormat(asInstant)},
	KindOffsetDateTime: {parseOffsetDateTime, timeFormat(asOffset)},
	KindZonedDateTime:  {parseZonedDateTime, timeFormat(asZoned)},
}

var kindOrder = []Kind{
	KindString, KindBoolean, KindByte, KindShort, KindInt, KindLong,
	KindFloat, KindDouble, KindBigInteger, KindBigDecimal, KindDate,
	KindLocalTime, KindLocalDate, KindLocalDateTime, KindInstant,
	KindOffsetDateTime, KindZonedDateTime,
}

// Kinds returns every supported kind in declaration order
func Kinds() []Kind {
	res := make([]Kind, len(kindOrder))
	copy(res, kindOrder)
	return res
}

// ParseKind resolves a type tag. Tags are matched case-insensitively and an
// empty tag resolves to KindString
func ParseKind(tag string) (Kind, error) {
	if tag == "" {
		return KindString, nil
	}
	k := Kind(strings.ToLower(strings.TrimSpace(tag)))
	if _, ok := kinds[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, tag)
	}
	return k, nil
}

// IsValid reports whether k is one of the supported kinds
func (k Kind) IsValid() bool {
	_, ok := kinds[k]
	return ok
}

// Parse converts text into a typed value of this kind
func (k Kind) Parse(text string) (any, error) {
	def, ok := kinds[k]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
	}
	v, err := def.parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %w", ErrInvalidValue, k, text, err)
	}
	return v, nil
}

// Format renders a typed value of this kind so that Parse can restore it
func (k Kind) Format(v any) string {
	if v == nil {
		return ""
	}
	if def, ok := kinds[k]; ok {
		return def.format(v)
	}
	return FormatText(v)
}

// KindOf infers the kind of a typed value. Values of unsupported Go types
// report false
func KindOf(v any) (Kind, bool) {
	switch v.(type) {
	case string:
		return KindString, true
	case bool:
		return KindBoolean, true
	case int8:
		return KindByte, true
	case int16:
		return KindShort, true
	case int32:
		return KindInt, true
	case int, int64:
		return KindLong, true
	case float32:
		return KindFloat, true
	case float64:
		return KindDouble, true
	case *big.Int:
		return KindBigInteger, true
	case *big.Float:
		return KindBigDecimal, true
	case time.Time:
		return KindDate, true
	case Instant:
		return KindInstant, true
	case OffsetDateTime:
		return KindOffsetDateTime, true
	case ZonedDateTime:
		return KindZonedDateTime, true
	case LocalTime:
		return KindLocalTime, true
	case LocalDate:
		return KindLocalDate, true
	case LocalDateTime:
		return KindLocalDateTime, true
	default:
		return "", false
	}
}

// FormatText renders a value using its natural textual representation. A nil
// value renders as the empty string
func FormatText(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case *big.Float:
		return v.Text('f', -1)
	case time.Time:
		return formatRFC3339(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func parseString(s string) (any, error) {
	return s, nil
}

func parseBoolean(s string) (any, error) {
	return strings.EqualFold(strings.TrimSpace(s), "true"), nil
}

func parseIntBits(bits int) KindParser {
	return func(s string) (any, error) {
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, bits)
		if err != nil {
			return nil, err
		}
		switch bits {
		case 8:
			return int8(i), nil
		case 16:
			return int16(i), nil
		case 32:
			return int32(i), nil
		default:
			return i, nil
		}
	}
}

func parseFloatBits(bits int) KindParser {
	return func(s string) (any, error) {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), bits)
		if err != nil {
			return nil, err
		}
		if bits == 32 {
			return float32(f), nil
		}
		return f, nil
	}
}

func parseBigInteger(s string) (any, error) {
	i, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, errors.New("not an integer")
	}
	return i, nil
}

func parseBigDecimal(s string) (any, error) {
	f, _, err := big.ParseFloat(strings.TrimSpace(s), 10, 256, big.ToNearestEven)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func formatNatural(v any) string {
	return FormatText(v)
}

func formatDate(v any) string {
	if t, ok := TimeOf(v); ok {
		return formatRFC3339(t)
	}
	return FormatText(v)
}

// timeFormat renders any value on the timeline as the given time type, so
// that a plain time.Time handed to a typed kind formats like that kind
func timeFormat(as func(time.Time) fmt.Stringer) KindFormatter {
	return func(v any) string {
		if t, ok := TimeOf(v); ok {
			return as(t).String()
		}
		return FormatText(v)
	}
}

func asInstant(t time.Time) fmt.Stringer {
	return Instant{Time: t}
}

func asOffset(t time.Time) fmt.Stringer {
	return OffsetDateTime{Time: t}
}

func asZoned(t time.Time) fmt.Stringer {
	return ZonedDateTime{Time: t}
}
