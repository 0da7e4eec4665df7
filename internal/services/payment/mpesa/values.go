package mpesa

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

func toDecimal(v interface{}) decimal.Decimal {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x)
	case string:
		d, err := decimal.NewFromString(x)
		if err == nil {
			return d
		}
	}
	return decimal.Zero
}

// Daraja sends PhoneNumber as a JSON number.
func toString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
