// Package fuel defines the fuel grades sold through the delivery platform
// and the per-gallon price table shared by sources and services.
package fuel

// Type identifies a fuel grade.
type Type string

const (
	Regular  Type = "regular"
	Midgrade Type = "midgrade"
	Premium  Type = "premium"
	Diesel   Type = "diesel"
)

// Types returns all known fuel grades in display order.
func Types() []Type {
	return []Type{Regular, Midgrade, Premium, Diesel}
}

// Valid reports whether t is a known fuel grade.
func (t Type) Valid() bool {
	switch t {
	case Regular, Midgrade, Premium, Diesel:
		return true
	}
	return false
}

// PriceTable maps fuel grades to USD-per-gallon prices.
type PriceTable map[Type]float64

// Complete reports whether the table has a positive price for every grade.
func (p PriceTable) Complete() bool {
	for _, t := range Types() {
		if p[t] <= 0 {
			return false
		}
	}
	return true
}

// Clone returns a copy so callers can mutate without aliasing.
func (p PriceTable) Clone() PriceTable {
	out := make(PriceTable, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
