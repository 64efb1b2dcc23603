package param

import (
	"fmt"
	"strconv"
	"strings"
)

// DecibelFormatter formats dB values
func DecibelFormatter(db float64) string {
	if db <= -60 {
		return "-∞ dB"
	}
	return fmt.Sprintf("%.1f dB", db)
}

// DecibelParser parses dB strings
func DecibelParser(str string) (float64, error) {
	if strings.Contains(str, "∞") || strings.Contains(str, "inf") {
		return -96.0, nil
	}
	s := strings.TrimSpace(str)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "dB"), "db")
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// PercentFormatter formats percentage values
func PercentFormatter(value float64) string {
	return fmt.Sprintf("%.0f%%", value)
}

// PercentParser parses percentage strings
func PercentParser(str string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(str), "%"), 64)
}

// OnOffFormatter formats boolean as On/Off
func OnOffFormatter(value float64) string {
	if value > 0.5 {
		return "On"
	}
	return "Off"
}

// OnOffParser parses On/Off strings
func OnOffParser(str string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "on", "yes", "true", "1":
		return 1, nil
	case "off", "no", "false", "0":
		return 0, nil
	}
	return 0, fmt.Errorf("expected 'on' or 'off', got: %s", str)
}
