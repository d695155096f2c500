package units

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Measurement types accepted by FormatMeasurement.
const (
	Distance = "Distance"
	Area     = "Area"
)

var (
	ErrUnsupportedMeasurement = errors.New("unsupported measurement type")
	ErrNotFinite              = errors.New("measurement is not a finite number")
)

// FormatOptions controls FormatNumber.
type FormatOptions struct {
	FixedLen int  `json:"fixedLen" doc:"Decimal places"`
	Trim     bool `json:"trim" doc:"Drop trailing zeros after the decimal point"`
}

// DefaultFormat is two decimal places, untrimmed.
var DefaultFormat = FormatOptions{FixedLen: 2}

// FormatNumber renders n with opts.FixedLen decimals and comma thousands
// separators in the integer part. Ties round away from zero.
func FormatNumber(n float64, opts FormatOptions) string {
	s := toFixed(n, max(opts.FixedLen, 0))
	if opts.Trim {
		v, err := strconv.ParseFloat(s, 64)
		if err == nil {
			if v == 0 {
				v = 0 // drop negative zero
			}
			s = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return groupThousands(s)
}

// exactDigits covers the longest decimal expansion of a float64.
const exactDigits = 1100

// toFixed rounds the exact decimal value of n to digits decimals, picking
// the larger magnitude on a tie.
func toFixed(n float64, digits int) string {
	if !finite(n) {
		return strconv.FormatFloat(n, 'f', digits, 64)
	}

	exact := new(big.Float).SetFloat64(math.Abs(n)).Text('f', exactDigits)
	intPart, frac, _ := strings.Cut(exact, ".")
	frac += strings.Repeat("0", max(digits-len(frac), 0))

	num := []byte(intPart + frac[:digits])
	if rest := frac[digits:]; rest != "" && rest[0] >= '5' {
		i := len(num) - 1
		for ; i >= 0 && num[i] == '9'; i-- {
			num[i] = '0'
		}
		if i < 0 {
			num = append([]byte{'1'}, num...)
		} else {
			num[i]++
		}
	}

	split := len(num) - digits
	s := string(num[:split])
	if digits > 0 {
		s += "." + string(num[split:])
	}
	if n < 0 {
		s = "-" + s
	}
	return s
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		sign, s = s[:1], s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if len(intPart) <= 3 || strings.IndexFunc(intPart, notDigit) >= 0 {
		return sign + s
	}

	var b strings.Builder
	head := len(intPart) % 3
	if head > 0 {
		b.WriteString(intPart[:head])
	}
	for i := head; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}

func notDigit(r rune) bool { return r < '0' || r > '9' }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// FormatDistance formats a distance already converted into system units.
// It reports false for an unknown system or a non-finite value.
func FormatDistance(v float64, system string) (string, bool) {
	if !finite(v) {
		return "", false
	}

	var label string
	switch system {
	case Metric:
		label = "m"
		if math.Abs(v) >= 1000 {
			v, label = v/1000, "km"
		}
	case Imperial:
		label = "ft"
		if math.Abs(v) >= 5280 {
			v, label = v/5280, "mi"
		}
	case Nautical:
		label = "nmi"
	case Schoolbus:
		label = "school buses"
	default:
		return "", false
	}
	return FormatNumber(v, DefaultFormat) + " " + label, true
}

// FormatArea formats an area already converted into system units.
// It reports false for an unknown system or a non-finite value.
func FormatArea(v float64, system string) (string, bool) {
	if !finite(v) {
		return "", false
	}

	var label string
	switch system {
	case Metric:
		label = "m<sup>2</sup>"
		if math.Abs(v) >= 1_000_000 {
			v, label = v/1_000_000, "km<sup>2</sup>"
		}
	case Imperial:
		label = "ft<sup>2</sup>"
		if math.Abs(v) >= 27_878_400 {
			v, label = v/27_878_400, "mi<sup>2</sup>"
		}
	case Nautical:
		label = "nmi<sup>2</sup>"
	case Schoolbus:
		label = "school buses<sup>2</sup>"
	default:
		return "", false
	}
	return FormatNumber(v, DefaultFormat) + " " + label, true
}

// FormatMeasurement formats v as a Distance or Area in system units.
func FormatMeasurement(v float64, measurementType, system string) (string, error) {
	var format func(float64, string) (string, bool)
	switch measurementType {
	case Distance:
		format = FormatDistance
	case Area:
		format = FormatArea
	default:
		log.Warn().Str("measurement", measurementType).Msg("Could not format measurement, unsupported measurement type")
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMeasurement, measurementType)
	}

	if !finite(v) {
		return "", fmt.Errorf("%w: %v", ErrNotFinite, v)
	}
	s, ok := format(v, system)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownUnits, system)
	}
	return s, nil
}
