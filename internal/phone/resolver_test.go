package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver_CountryForPhone(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		name    string
		msisdn  string
		country string
		wantErr bool
	}{
		{"cameroon with plus", "+237650000001", "CM", false},
		{"senegal bare", "221770000002", "SN", false},
		{"ivory coast 00 prefix", "0022507000003", "CI", false},
		{"kenya", "+254700000004", "KE", false},
		{"france two digit prefix", "+33612345678", "FR", false},
		{"us one digit prefix", "+14155550100", "US", false},
		{"spaces and dashes", "+237 6 50-00-00-01", "CM", false},
		{"empty", "", "", true},
		{"unknown prefix", "+999123456", "", true},
		{"letters only", "abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			country, err := r.CountryForPhone(tt.msisdn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.country, country)
		})
	}
}
