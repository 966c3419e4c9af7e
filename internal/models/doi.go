package models

import (
	"fmt"
	"regexp"
)

// DefaultDOIPrefix is the registrant prefix printed in citations.
const DefaultDOIPrefix = "10.ISUFST.CICT"

// MaxDOISerial is the largest serial representable in the five digit suffix.
const MaxDOISerial = 99999

var (
	generatedDOIPattern = regexp.MustCompile(`^10\.ISUFST\.CICT/\d{4}\.\d{5}$`)
	anyDOIPattern       = regexp.MustCompile(`^10\.\S+/\S+$`)
)

// FormatDOI renders prefix/{year}.{serial zero-padded to 5}.
func FormatDOI(prefix string, year, serial int) (string, error) {
	if prefix == "" {
		prefix = DefaultDOIPrefix
	}
	if serial < 1 || serial > MaxDOISerial {
		return "", fmt.Errorf("doi serial %d out of range for year %d", serial, year)
	}
	if year < 1000 || year > 9999 {
		return "", fmt.Errorf("doi year %d out of range", year)
	}
	return fmt.Sprintf("%s/%d.%05d", prefix, year, serial), nil
}

// IsGeneratedDOI reports whether doi has the shape minted by this system.
func IsGeneratedDOI(doi string) bool {
	return generatedDOIPattern.MatchString(doi)
}

// IsValidDOI accepts minted DOIs and any historical 10.x/y identifier.
func IsValidDOI(doi string) bool {
	return IsGeneratedDOI(doi) || anyDOIPattern.MatchString(doi)
}

// DOIResult is returned by DOI assignment and revocation.
type DOIResult struct {
	Paper      *Paper `json:"paper,omitempty"`
	DOI        string `json:"doi,omitempty"`
	RevokedDOI string `json:"revoked_doi,omitempty"`
}
