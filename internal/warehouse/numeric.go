package warehouse

import (
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// toNumeric converts a decimal into a pgtype.Numeric without a float step.
func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Int:   new(big.Int).Set(d.Coefficient()),
		Exp:   d.Exponent(),
		Valid: true,
	}
}

// toNullNumeric converts a nullable decimal; invalid maps to SQL NULL.
func toNullNumeric(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{}
	}
	return toNumeric(d.Decimal)
}

// fromNumeric converts a scanned numeric. NULL, NaN and infinities map to an
// invalid NullDecimal.
func fromNumeric(n pgtype.Numeric) decimal.NullDecimal {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromBigInt(n.Int, n.Exp))
}

// fromNumericOrZero is fromNumeric for NOT NULL columns.
func fromNumericOrZero(n pgtype.Numeric) decimal.Decimal {
	d := fromNumeric(n)
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
