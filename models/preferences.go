package models

import (
	"fmt"
	"strings"
)

// Summary lengths accepted by the customized-summary path
const (
	LengthShort    = "short"
	LengthMedium   = "medium"
	LengthDetailed = "detailed"
)

// Summary styles accepted by the customized-summary path
const (
	StyleBulletPoints   = "bullet_points"
	StyleConversational = "conversational"
	StyleTechnical      = "technical"
)

var (
	validLengths = []string{LengthShort, LengthMedium, LengthDetailed}
	validStyles  = []string{StyleBulletPoints, StyleConversational, StyleTechnical}
)

// Preferences conditions the annotation prompt for a customized summary
type Preferences struct {
	Length string `json:"length" bson:"length"`
	Style  string `json:"style" bson:"style"`
}

// DefaultPreferences returns the preferences used when a caller omits them
func DefaultPreferences() Preferences {
	return Preferences{
		Length: LengthMedium,
		Style:  StyleConversational,
	}
}

// Validate checks both fields against their closed vocabularies
func (p Preferences) Validate() error {
	if !contains(validLengths, p.Length) {
		return fmt.Errorf("invalid length %q, must be one of: %s", p.Length, strings.Join(validLengths, ", "))
	}
	if !contains(validStyles, p.Style) {
		return fmt.Errorf("invalid style %q, must be one of: %s", p.Style, strings.Join(validStyles, ", "))
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
