package api

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	// LocalDate is a calendar date without a time or zone
	LocalDate struct {
		Year  int
		Month time.Month
		Day   int
	}

	// LocalTime is a wall-clock time without a date or zone
	LocalTime struct {
		Hour       int
		Minute     int
		Second     int
		Nanosecond int
	}

	// LocalDateTime is a date and wall-clock time without a zone
	LocalDateTime struct {
		Date LocalDate
		Time LocalTime
	}

	// Instant is a point on the timeline, held in UTC
	Instant struct {
		time.Time
	}

	// OffsetDateTime is a date-time carrying a fixed offset from UTC
	OffsetDateTime struct {
		time.Time
	}

	// ZonedDateTime is a date-time in a named zone such as Europe/Berlin
	ZonedDateTime struct {
		time.Time
	}
)

const (
	layoutLocalDate     = "2006-01-02"
	layoutLocalDateTime = "2006-01-02T15:04:05"
	layoutLocalMinute   = "2006-01-02T15:04"
	layoutTime          = "15:04:05"
	layoutTimeMinute    = "15:04"
)

var (
	ErrMissingZone = errors.New("zone id missing")
	ErrBadZone     = errors.New("malformed zone id")
)

// String renders the date as yyyy-MM-dd
func (d LocalDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// String renders the time as HH:mm:ss with an optional fraction
func (t LocalTime) String() string {
	res := fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	if t.Nanosecond == 0 {
		return res
	}
	frac := strings.TrimRight(fmt.Sprintf("%09d", t.Nanosecond), "0")
	return res + "." + frac
}

// String renders the date-time as yyyy-MM-ddTHH:mm:ss
func (dt LocalDateTime) String() string {
	return dt.Date.String() + "T" + dt.Time.String()
}

// In places the local date-time on the timeline using the given location
func (dt LocalDateTime) In(loc *time.Location) time.Time {
	return time.Date(dt.Date.Year, dt.Date.Month, dt.Date.Day,
		dt.Time.Hour, dt.Time.Minute, dt.Time.Second, dt.Time.Nanosecond, loc)
}

// String renders the instant as RFC 3339 text in UTC
func (i Instant) String() string {
	return formatRFC3339(i.UTC())
}

// String renders the date-time as RFC 3339 text with its offset
func (o OffsetDateTime) String() string {
	return formatRFC3339(o.Time)
}

// String renders the date-time as RFC 3339 text followed by its bracketed
// zone id
func (z ZonedDateTime) String() string {
	return formatRFC3339(z.Time) + "[" + z.Location().String() + "]"
}

// TimeOf returns the point on the timeline held by a date, instant, offset
// or zoned value. Local values have no such point and report false
func TimeOf(v any) (time.Time, bool) {
	switch v := v.(type) {
	case time.Time:
		return v, true
	case Instant:
		return v.Time, true
	case OffsetDateTime:
		return v.Time, true
	case ZonedDateTime:
		return v.Time, true
	default:
		return time.Time{}, false
	}
}

func formatRFC3339(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func localDateOf(t time.Time) LocalDate {
	return LocalDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func localTimeOf(t time.Time) LocalTime {
	return LocalTime{
		Hour:       t.Hour(),
		Minute:     t.Minute(),
		Second:     t.Second(),
		Nanosecond: t.Nanosecond(),
	}
}

func parseLocalDate(s string) (any, error) {
	t, err := time.Parse(layoutLocalDate, strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return localDateOf(t), nil
}

func parseLocalTime(s string) (any, error) {
	t, err := parseFirst(strings.TrimSpace(s), time.UTC,
		layoutTime, layoutTimeMinute)
	if err != nil {
		return nil, err
	}
	return localTimeOf(t), nil
}

func parseLocalDateTime(s string) (any, error) {
	t, err := parseLocal(strings.TrimSpace(s), time.UTC)
	if err != nil {
		return nil, err
	}
	return LocalDateTime{Date: localDateOf(t), Time: localTimeOf(t)}, nil
}

func parseInstant(s string) (any, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return Instant{Time: t.UTC()}, nil
}

func parseOffsetDateTime(s string) (any, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return OffsetDateTime{Time: t}, nil
}

func parseZonedDateTime(s string) (any, error) {
	t, err := parseZoned(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return ZonedDateTime{Time: t}, nil
}

func parseZoned(s string) (time.Time, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		return time.Time{}, ErrMissingZone
	}
	if !strings.HasSuffix(s, "]") {
		return time.Time{}, ErrBadZone
	}
	loc, err := time.LoadLocation(s[open+1 : len(s)-1])
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s[:open])
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

// parseDate accepts zoned, offset or local date-time text and normalizes it
// to an instant. Local text is read in the process's local zone
func parseDate(s string) (any, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "]") {
		t, err := parseZoned(s)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := parseLocal(s, time.Local)
	if err != nil {
		return nil, err
	}
	return t.UTC(), nil
}

func parseLocal(s string, loc *time.Location) (time.Time, error) {
	return parseFirst(s, loc, layoutLocalDateTime, layoutLocalMinute)
}

func parseFirst(
	s string, loc *time.Location, layouts ...string,
) (time.Time, error) {
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
