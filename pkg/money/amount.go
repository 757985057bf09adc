// Package money holds arbitrary-precision minor-unit amounts. Values never pass
// through floating point; storage uses the decimal string form.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Amount is an integer quantity of a token's minor unit. The zero value is 0.
type Amount struct {
	i *big.Int
}

func NewAmount(v *big.Int) Amount {
	if v == nil {
		return Amount{}
	}
	return Amount{i: new(big.Int).Set(v)}
}

func FromInt64(n int64) Amount {
	return Amount{i: big.NewInt(n)}
}

// ParseAmount parses a base-10 integer string.
func ParseAmount(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid integer amount %q", s)
	}
	return Amount{i: v}, nil
}

func MustParse(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) big() *big.Int {
	if a.i == nil {
		return new(big.Int)
	}
	return a.i
}

// Big returns a copy of the underlying integer.
func (a Amount) Big() *big.Int {
	return new(big.Int).Set(a.big())
}

func (a Amount) String() string { return a.big().String() }

func (a Amount) Sign() int { return a.big().Sign() }

func (a Amount) IsZero() bool { return a.Sign() == 0 }

func (a Amount) Cmp(b Amount) int { return a.big().Cmp(b.big()) }

func (a Amount) Add(b Amount) Amount {
	return Amount{i: new(big.Int).Add(a.big(), b.big())}
}

func (a Amount) Sub(b Amount) Amount {
	return Amount{i: new(big.Int).Sub(a.big(), b.big())}
}

func (a Amount) MulInt(n int64) Amount {
	return Amount{i: new(big.Int).Mul(a.big(), big.NewInt(n))}
}

// MulDiv returns floor(a * num / den). den must be positive.
func (a Amount) MulDiv(num, den int64) Amount {
	v := new(big.Int).Mul(a.big(), big.NewInt(num))
	return Amount{i: v.Quo(v, big.NewInt(den))}
}

// Sum adds amounts without any intermediate precision loss.
func Sum(amounts ...Amount) Amount {
	total := new(big.Int)
	for _, a := range amounts {
		total.Add(total, a.big())
	}
	return Amount{i: total}
}

func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		a.i = new(big.Int)
		return nil
	case int64:
		a.i = big.NewInt(v)
		return nil
	case []byte:
		return a.scanString(string(v))
	case string:
		return a.scanString(v)
	case float64:
		// Only reachable on drivers that widen NUMERIC to REAL; reject lossy values.
		if v != float64(int64(v)) {
			return fmt.Errorf("amount column holds non-integer value %v", v)
		}
		a.i = big.NewInt(int64(v))
		return nil
	default:
		return fmt.Errorf("unsupported amount column type %T", src)
	}
}

func (a *Amount) scanString(s string) error {
	// Postgres NUMERIC may render a scale ("60.0") depending on the column definition.
	if whole, frac, ok := strings.Cut(s, "."); ok && strings.Trim(frac, "0") == "" {
		s = whole
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// GormDataType keeps the column wide enough for uint256 values.
func (Amount) GormDataType() string {
	return "numeric(78,0)"
}
