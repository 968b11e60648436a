package domain

import (
	"encoding/json"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

// The indexer serializes numbers in whatever shape the chain client produced
// them: JSON numbers, decimal strings, hex strings or ethers BigNumber objects.
// The types below decode all of them and fall back to "absent" on garbage, so
// decoding a record never fails because of one malformed field.

// BigValue is an optional arbitrary precision integer.
type BigValue struct {
	v *big.Int
}

func NewBigValue(x *big.Int) BigValue {
	if x == nil {
		return BigValue{}
	}
	return BigValue{v: new(big.Int).Set(x)}
}

func BigValueFromString(s string) BigValue {
	return BigValue{v: parseBigString(s)}
}

func (b BigValue) Valid() bool {
	return b.v != nil
}

// Int returns a copy of the value, or nil if absent.
func (b BigValue) Int() *big.Int {
	if b.v == nil {
		return nil
	}
	return new(big.Int).Set(b.v)
}

func (b BigValue) String() string {
	if b.v == nil {
		return ""
	}
	return b.v.String()
}

func (b *BigValue) UnmarshalJSON(data []byte) error {
	b.v = parseBigResult(gjson.ParseBytes(data))
	return nil
}

func (b BigValue) MarshalJSON() ([]byte, error) {
	if b.v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(b.v.String())
}

func parseBigResult(r gjson.Result) *big.Int {
	switch r.Type {
	case gjson.Number:
		return parseBigString(r.Raw)
	case gjson.String:
		return parseBigString(r.Str)
	case gjson.JSON:
		if hex := r.Get("hex"); hex.Exists() {
			return parseBigString(hex.String())
		}
		if hex := r.Get("_hex"); hex.Exists() {
			return parseBigString(hex.String())
		}
	}
	return nil
}

func parseBigString(s string) *big.Int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if v, ok := math.ParseBig256(s); ok {
		return v
	}
	// exponent notation, e.g. 1.5e+21
	f, ok := new(big.Float).SetPrec(256).SetString(s)
	if !ok || f.Sign() < 0 {
		return nil
	}
	v, _ := f.Int(nil)
	return v
}

// FlexInt is an optional integer. Booleans decode to 1 and 0, which is how
// receipt statuses are reported by some chains.
type FlexInt struct {
	V     int64
	Valid bool
}

func NewFlexInt(v int64) FlexInt {
	return FlexInt{V: v, Valid: true}
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	r := gjson.ParseBytes(data)
	switch r.Type {
	case gjson.True:
		*f = NewFlexInt(1)
	case gjson.False:
		*f = NewFlexInt(0)
	case gjson.Number:
		if v, err := cast.ToInt64E(r.Num); err == nil {
			*f = NewFlexInt(v)
		}
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		if v, err := strconv.ParseInt(s, 0, 64); err == nil {
			*f = NewFlexInt(v)
		} else if v, err := cast.ToFloat64E(s); err == nil {
			*f = NewFlexInt(int64(v))
		}
	}
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.V)
}

// FlexFloat is an optional floating point amount.
type FlexFloat struct {
	V     float64
	Valid bool
}

func NewFlexFloat(v float64) FlexFloat {
	return FlexFloat{V: v, Valid: true}
}

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat{}
	r := gjson.ParseBytes(data)
	switch r.Type {
	case gjson.Number:
		*f = NewFlexFloat(r.Num)
	case gjson.String:
		if v, err := cast.ToFloat64E(strings.TrimSpace(r.Str)); err == nil {
			*f = NewFlexFloat(v)
		}
	}
	return nil
}

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.V)
}

// Less reports f < x. An absent value is never less than anything.
func (f FlexFloat) Less(x float64) bool {
	return f.Valid && f.V < x
}

// AtLeast reports f >= x. An absent value never satisfies it.
func (f FlexFloat) AtLeast(x float64) bool {
	return f.Valid && f.V >= x
}

// FlexString accepts strings and numbers, e.g. error codes that are either
// "CALL_EXCEPTION" or -32000.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	switch r.Type {
	case gjson.String:
		*f = FlexString(r.Str)
	case gjson.Number:
		*f = FlexString(r.Raw)
	default:
		*f = ""
	}
	return nil
}
