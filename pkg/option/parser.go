// Package option parses option contract tickers of the form
// <underlying><expiration><C|P><strike>, e.g. AAPL230616C00150000.
package option

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidExpiration is returned when a ticker has the shape of an option
// contract but its expiration digits are not a valid date.
var ErrInvalidExpiration = errors.New("Invalid expiration date")

// Right is the option type: call or put.
type Right string

const (
	// Call is the right to buy the underlying at the strike.
	Call Right = "C"

	// Put is the right to sell the underlying at the strike.
	Put Right = "P"
)

var tickerPattern = regexp.MustCompile(`^\.?([A-Za-z]+)(\d+)([CcPp])(\d+)`)

// expirationFormats are tried in order and the first that yields a date
// wins, so a run valid under both is read with a 2-digit year. The year has a
// fixed width; month and day take one or two digits, two preferred, and the
// match must consume the whole run. 231345 is therefore 2313-04-05.
var expirationFormats = []struct {
	pattern    *regexp.Regexp
	yearDigits int
}{
	{regexp.MustCompile(`^(\d{2})` + monthDay), 2},
	{regexp.MustCompile(`^(\d{4})` + monthDay), 4},
}

const monthDay = `(1[0-2]|0[1-9]|[1-9])(3[01]|[12]\d|0[1-9]|[1-9])`

// Parsed is an option contract decoded from a ticker.
type Parsed struct {
	Underlying string
	Expiration time.Time
	Right      Right
	Strike     string
}

// Parse decodes ticker into its option components.
//
// ok is false when ticker is not an option ticker at all. When ticker looks
// like an option but the expiration digits do not form a date, ok is true and
// err is ErrInvalidExpiration.
func Parse(ticker string) (p Parsed, ok bool, err error) {
	m := tickerPattern.FindStringSubmatch(ticker)
	if m == nil {
		return Parsed{}, false, nil
	}

	expiration, err := parseExpiration(m[2])
	if err != nil {
		return Parsed{}, true, err
	}

	return Parsed{
		Underlying: m[1],
		Expiration: expiration,
		Right:      Right(strings.ToUpper(m[3])),
		Strike:     m[4],
	}, true, nil
}

func parseExpiration(digits string) (time.Time, error) {
	for _, f := range expirationFormats {
		if t, ok := matchDate(f.pattern, f.yearDigits, digits); ok {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidExpiration
}

func matchDate(pattern *regexp.Regexp, yearDigits int, digits string) (time.Time, bool) {
	m := pattern.FindStringSubmatch(digits)
	if m == nil || len(m[0]) != len(digits) {
		return time.Time{}, false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	if yearDigits == 2 {
		// 69-99 are 1900s, 00-68 are 2000s.
		if year < 69 {
			year += 2000
		} else {
			year += 1900
		}
	} else if year == 0 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// Underlying returns the underlying symbol of ticker when it is an option
// ticker, and ticker unchanged otherwise.
func Underlying(ticker string) (string, error) {
	p, ok, err := Parse(ticker)
	if err != nil {
		return "", err
	}
	if !ok {
		return ticker, nil
	}
	return p.Underlying, nil
}

// Code returns the provider contract symbol, e.g. AAPL230616C00150000.
func (p Parsed) Code() string {
	return strings.ToUpper(p.Underlying) + p.Expiration.Format("060102") + string(p.Right) + p.Strike
}

// IsCall reports whether the contract is a call.
func (p Parsed) IsCall() bool {
	return p.Right == Call
}
