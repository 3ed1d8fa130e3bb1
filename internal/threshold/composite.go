package threshold

import (
	"encoding/json"
	"strconv"
	"strings"
)

// nutrientAliases tolerates the sub-element keys seen in the field: single
// letters, English names, and the French names the mobile app sends.
var nutrientAliases = map[string]string{
	"n":          "nitrogen",
	"nitrogen":   "nitrogen",
	"azote":      "nitrogen",
	"p":          "phosphorus",
	"phosphorus": "phosphorus",
	"phosphore":  "phosphorus",
	"k":          "potassium",
	"potassium":  "potassium",
	"potasse":    "potassium",
}

// ParseComposite decodes an NPK payload into canonical sub-element names.
// The second return is false when the payload is not a usable JSON object.
func ParseComposite(raw string) (map[string]float64, bool) {
	var obj map[string]json.Number
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, false
	}

	out := make(map[string]float64)
	for key, num := range obj {
		canonical, ok := nutrientAliases[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(num.String(), 64)
		if err != nil {
			continue
		}
		out[canonical] = v
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
