// Package address splits free-text postal addresses into street, city,
// state and ZIP using an ordered fallback chain of patterns.
package address

import (
	"regexp"
	"strings"
)

// Roles used as key suffixes by the enricher.
const (
	RoleIssuer  = "issuer"
	RoleProject = "project"
)

// Address is a best-effort decomposition. Any field may be empty.
type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// OneLine joins street, city and "state zip" with ", ", skipping blanks.
func (a Address) OneLine() string {
	stateZip := strings.TrimSpace(a.State + " " + a.Zip)
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Street, a.City, stateZip} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Fields returns {address_role, city_role, state_role, zip_role}.
func (a Address) Fields(role string) map[string]string {
	return map[string]string{
		"address_" + role: a.Street,
		"city_" + role:    a.City,
		"state_" + role:   a.State,
		"zip_" + role:     a.Zip,
	}
}

// Decompose parses raw and keys the result by role. It never fails.
func Decompose(raw, role string) map[string]string {
	return Parse(raw).Fields(role)
}

const zipPattern = `(\d{5}(?:-\d{4})?)`

var (
	commaSeparated = regexp.MustCompile(`^(.+?),\s*([A-Za-z]{2})\.?,?\s+` + zipPattern + `$`)
	spaceSeparated = regexp.MustCompile(`^(.+?)\s+([A-Za-z]{2})\.?,?\s+` + zipPattern + `$`)
	fullStateName  = regexp.MustCompile(`(?i)^(.+?),?\s+(` + stateNameAlternation() + `),?\s+` + zipPattern + `$`)
	genericToken   = regexp.MustCompile(`^(.+?),?\s+([A-Za-z]{2,})\.?,?\s+` + zipPattern + `$`)

	escapedBreak = strings.NewReplacer(`\r\n`, "\n", `\n`, "\n", `\r`, "\n", "\r\n", "\n", "\r", "\n")
)

// Parse decomposes a multi-line address.
func Parse(raw string) Address {
	lines := splitLines(raw)
	if len(lines) == 0 {
		return Address{Street: raw}
	}

	locality := lines[len(lines)-1]
	street := strings.Join(lines[:len(lines)-1], ", ")

	if city, state, zip, ok := matchLocality(locality); ok {
		if street == "" {
			street, city = splitCity(city)
		}
		return Address{Street: street, City: city, State: state, Zip: zip}
	}

	if len(lines) == 1 {
		return Address{Street: locality}
	}
	return Address{Street: street}
}

func splitLines(raw string) []string {
	normalized := escapedBreak.Replace(raw)
	var lines []string
	for _, line := range strings.Split(normalized, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isCountry(line) {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func matchLocality(line string) (city, state, zip string, ok bool) {
	if m := commaSeparated.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), strings.ToUpper(m[2]), m[3], true
	}
	if m := spaceSeparated.FindStringSubmatch(line); m != nil {
		return strings.TrimRight(strings.TrimSpace(m[1]), ","), strings.ToUpper(m[2]), m[3], true
	}
	if m := fullStateName.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), abbreviate(m[2]), m[3], true
	}
	if m := genericToken.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), m[2], m[3], true
	}
	return "", "", "", false
}

// splitCity handles single-line input such as "1 Main St, Austin, TX 78701"
// where the street is still glued to the city.
func splitCity(city string) (street, rest string) {
	i := strings.LastIndex(city, ",")
	if i < 0 {
		return "", city
	}
	return strings.TrimSpace(city[:i]), strings.TrimSpace(city[i+1:])
}

var countrySentinels = map[string]bool{
	"us":                       true,
	"usa":                      true,
	"u.s.":                     true,
	"u.s.a.":                   true,
	"united states":            true,
	"united states of america": true,
}

func isCountry(line string) bool {
	return countrySentinels[strings.ToLower(strings.TrimRight(line, ". "))] ||
		countrySentinels[strings.ToLower(line)]
}
