package postgres

import (
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
)

// Amount columns are NUMERIC(12,2) dollars in the database; everything in
// Go is int64 cents. Conversions must be exact, a sub-cent NUMERIC is a
// data bug we want to surface loudly.

// CentsToNumeric converts int64 cents to a NUMERIC dollar value
func CentsToNumeric(cents int64) pgtype.Numeric {
	return pgtype.Numeric{
		Int:   big.NewInt(cents),
		Exp:   -2,
		Valid: true,
	}
}

// NumericToCents converts a NUMERIC dollar value to int64 cents
func NumericToCents(n pgtype.Numeric) (int64, error) {
	if !n.Valid {
		return 0, fmt.Errorf("numeric value is null")
	}
	if n.NaN {
		return 0, fmt.Errorf("numeric value is NaN")
	}

	// shift to cents: value * 10^(exp+2)
	shift := int(n.Exp) + 2
	v := new(big.Int).Set(n.Int)
	switch {
	case shift > 0:
		v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(shift)), nil))
	case shift < 0:
		div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-shift)), nil)
		rem := new(big.Int)
		v.QuoRem(v, div, rem)
		if rem.Sign() != 0 {
			return 0, fmt.Errorf("numeric value has sub-cent precision: exp=%d", n.Exp)
		}
	}

	if !v.IsInt64() {
		return 0, fmt.Errorf("numeric value overflows int64 cents")
	}
	return v.Int64(), nil
}
