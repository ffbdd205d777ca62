package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecompose_RoundTrip(t *testing.T) {
	got := Decompose("123 Main St\nAnytown, CA 90210", RoleIssuer)
	assert.Equal(t, map[string]string{
		"address_issuer": "123 Main St",
		"city_issuer":    "Anytown",
		"state_issuer":   "CA",
		"zip_issuer":     "90210",
	}, got)
}

func TestDecompose_EmptyInput(t *testing.T) {
	got := Decompose("", RoleProject)
	assert.Equal(t, map[string]string{
		"address_project": "",
		"city_project":    "",
		"state_project":   "",
		"zip_project":     "",
	}, got)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Address
	}{
		{
			name: "escaped line breaks and country line",
			raw:  `500 Solar Way\nSuite 2\nDenver, CO 80202-1234\nUnited States`,
			want: Address{Street: "500 Solar Way, Suite 2", City: "Denver", State: "CO", Zip: "80202-1234"},
		},
		{
			name: "crlf and blank lines",
			raw:  "9 Wind Rd\r\n\r\n  Boise ID 83702  \r\nUSA",
			want: Address{Street: "9 Wind Rd", City: "Boise", State: "ID", Zip: "83702"},
		},
		{
			name: "full state name without punctuation",
			raw:  "77 River St\nSan Antonio Texas 78205",
			want: Address{Street: "77 River St", City: "San Antonio", State: "TX", Zip: "78205"},
		},
		{
			name: "two word state name",
			raw:  "1 Peak Ave\nCharleston West Virginia 25301",
			want: Address{Street: "1 Peak Ave", City: "Charleston", State: "WV", Zip: "25301"},
		},
		{
			name: "generic token fallback",
			raw:  "4 Rue Verte\nToronto Ontario 12345",
			want: Address{Street: "4 Rue Verte", City: "Toronto", State: "Ontario", Zip: "12345"},
		},
		{
			name: "lowercase state abbreviation",
			raw:  "2 Elm St\nportland, or 97201",
			want: Address{Street: "2 Elm St", City: "portland", State: "OR", Zip: "97201"},
		},
		{
			name: "single line with street, city, state and zip",
			raw:  "123 Main St, Anytown, CA 90210",
			want: Address{Street: "123 Main St", City: "Anytown", State: "CA", Zip: "90210"},
		},
		{
			name: "single unmatched line",
			raw:  "PO Box 42",
			want: Address{Street: "PO Box 42"},
		},
		{
			name: "unmatched multi-line keeps street lines",
			raw:  "12 Oak Ln\nSomewhere without zip",
			want: Address{Street: "12 Oak Ln"},
		},
		{
			name: "only a country line",
			raw:  "United States",
			want: Address{Street: "United States"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.raw))
		})
	}
}

func TestOneLine(t *testing.T) {
	a := Address{Street: "123 Main St", City: "Anytown", State: "CA", Zip: "90210"}
	assert.Equal(t, "123 Main St, Anytown, CA 90210", a.OneLine())
	assert.Equal(t, "Anytown", Address{City: "Anytown"}.OneLine())
	assert.Equal(t, "", Address{}.OneLine())
}
