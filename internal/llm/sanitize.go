package llm

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/constants"
)

var (
	reAmount    = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	amountNoise = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "€", "", "EUR", "", "eur", "")
)

// NormalizeAmount turns numeric-looking amounts into json.Number so they export
// as numbers: 12000, "12 000", "12000€", "1 234,50" and "1.234,50" all qualify.
// Other strings (including "MISSING") are returned trimmed; nil stays nil.
func NormalizeAmount(v any) any {
	switch t := v.(type) {
	case json.Number:
		return t
	case float64:
		return json.Number(strconv.FormatFloat(t, 'f', -1, 64))
	case int:
		return json.Number(strconv.Itoa(t))
	case string:
		s := strings.TrimSpace(t)
		if s == constants.MissingAmount {
			return s
		}
		if n, ok := parseFrenchNumber(s); ok {
			return n
		}
		return s
	}
	return v
}

func parseFrenchNumber(s string) (json.Number, bool) {
	c := amountNoise.Replace(s)
	if c == "" {
		return "", false
	}
	if strings.Contains(c, ",") {
		// comma is the decimal mark; dots are thousands separators
		c = strings.ReplaceAll(c, ".", "")
		if strings.Count(c, ",") != 1 {
			return "", false
		}
		c = strings.Replace(c, ",", ".", 1)
	}
	if !reAmount.MatchString(c) {
		return "", false
	}
	return json.Number(c), true
}
