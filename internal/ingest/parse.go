package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
	time.RFC3339,
}

var hourLayouts = []string{
	"15:04:05",
	"15:04",
}

// nullTokens are cell values treated as absent.
var nullTokens = map[string]bool{
	"":       true,
	"(null)": true,
	"null":   true,
	"na":     true,
	"n/a":    true,
	"nan":    true,
}

func isNull(s string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(s))]
}

// parseDate tries each accepted layout in order.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// parseHour extracts the hour of day from a clock value.
func parseHour(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range hourLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			h := t.Hour()
			return &h
		}
	}
	return nil
}

// parseDecimal parses a number written with either a decimal point or a
// decimal comma. When both separators appear, the point is taken as the
// thousands separator ("1.234,5" is 1234.5).
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseCoordinate returns nil when the value is missing or not a number.
func parseCoordinate(s string) *float64 {
	v, ok := parseDecimal(s)
	if !ok {
		return nil
	}
	return &v
}

// parseNumber coerces non-numeric values to 0.
func parseNumber(s string) float64 {
	v, _ := parseDecimal(s)
	return v
}

// parseCount coerces to a non-negative integer count.
func parseCount(s string) int {
	v := parseNumber(s)
	if v < 0 {
		return 0
	}
	return int(v)
}

func parseCategory(s string) *string {
	if isNull(s) {
		return nil
	}
	v := strings.TrimSpace(s)
	return &v
}

func parseText(s string) string {
	if isNull(s) {
		return ""
	}
	return strings.TrimSpace(s)
}

// normalizeColumn case-folds a header name.
func normalizeColumn(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	return strings.ToLower(strings.TrimSpace(name))
}
