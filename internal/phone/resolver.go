// Package phone resolves E.164 phone numbers to ISO country codes using a
// longest-prefix match over the dialing plan of supported corridors.
package phone

import (
	"strings"

	apperrors "transfer-router/internal/common/errors"
)

// dialingPlan maps international dialing prefixes to ISO 3166-1 alpha-2
// country codes for the corridors the router serves.
var dialingPlan = map[string]string{
	"237": "CM", // Cameroon
	"221": "SN", // Senegal
	"225": "CI", // Côte d'Ivoire
	"229": "BJ", // Benin
	"228": "TG", // Togo
	"241": "GA", // Gabon
	"224": "GN", // Guinea
	"223": "ML", // Mali
	"226": "BF", // Burkina Faso
	"227": "NE", // Niger
	"243": "CD", // DR Congo
	"242": "CG", // Congo
	"235": "TD", // Chad
	"236": "CF", // Central African Republic
	"254": "KE", // Kenya
	"255": "TZ", // Tanzania
	"256": "UG", // Uganda
	"250": "RW", // Rwanda
	"233": "GH", // Ghana
	"234": "NG", // Nigeria
	"220": "GM", // Gambia
	"245": "GW", // Guinea-Bissau
	"33":  "FR", // France
	"32":  "BE", // Belgium
	"1":   "US", // United States / Canada
	"44":  "GB", // United Kingdom
}

// Resolver maps phone numbers to countries
type Resolver struct {
	prefixes map[string]string
}

// NewResolver creates a resolver over the default dialing plan
func NewResolver() *Resolver {
	return &Resolver{prefixes: dialingPlan}
}

// CountryForPhone returns the ISO country code for an E.164 number.
// Accepts "+237650000001", "237650000001" or "00237650000001".
func (r *Resolver) CountryForPhone(msisdn string) (string, error) {
	digits := normalize(msisdn)
	if digits == "" {
		return "", apperrors.ValidationError("phone number is empty")
	}

	// Longest prefix wins: try 3, then 2, then 1 digit prefixes.
	for length := 3; length >= 1; length-- {
		if len(digits) < length {
			continue
		}
		if country, ok := r.prefixes[digits[:length]]; ok {
			return country, nil
		}
	}

	return "", apperrors.ValidationError("cannot determine country for phone number")
}

func normalize(msisdn string) string {
	s := strings.TrimSpace(msisdn)
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimPrefix(s, "00")

	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
