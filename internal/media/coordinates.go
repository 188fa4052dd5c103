package media

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// DMSToDecimal converts degrees/minutes/seconds and a hemisphere reference
// to signed decimal degrees. S and W are negative.
func DMSToDecimal(deg, min, sec float64, ref string) float64 {
	v := deg + min/60 + sec/3600
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		return -v
	}
	return v
}

// CoordinatesToDMS formats decimal coordinates as 40°26'46.00"N, 73°59'0.00"W.
func CoordinatesToDMS(lat, lon float64) string {
	return formatDMS(lat, "N", "S") + ", " + formatDMS(lon, "E", "W")
}

func formatDMS(v float64, pos, neg string) string {
	ref := pos
	if v < 0 {
		ref = neg
		v = -v
	}
	deg := int(v)
	minutes := (v - float64(deg)) * 60
	min := int(minutes)
	sec := (minutes - float64(min)) * 60
	return fmt.Sprintf("%d°%d'%.2f\"%s", deg, min, sec, ref)
}

// ParseCoordinate accepts either a signed decimal ("-73.9833") or a DMS
// form with a trailing hemisphere ("73 59 0 W", "40°26'46\"N").
func ParseCoordinate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty coordinate")
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}

	ref := ""
	if last := rune(s[len(s)-1]); strings.ContainsRune("NSEWnsew", last) {
		ref = string(unicode.ToUpper(last))
		s = s[:len(s)-1]
	}
	if ref == "" {
		return 0, fmt.Errorf("coordinate %q: missing hemisphere (N/S/E/W)", s)
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '°' || r == '\'' || r == '"' || r == ','
	})
	if len(fields) == 0 || len(fields) > 3 {
		return 0, fmt.Errorf("coordinate %q: expected degrees [minutes [seconds]]", s)
	}

	var parts [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, fmt.Errorf("coordinate %q: %w", s, err)
		}
		parts[i] = v
	}
	return DMSToDecimal(parts[0], parts[1], parts[2], ref), nil
}
