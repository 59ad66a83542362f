package baseline

import "strings"

// jurisdictionCodes maps the jurisdiction names used in queries and region
// profiles to country codes stored in the database.
var jurisdictionCodes = map[string]string{
	"taiwan":    "TW",
	"台灣":        "TW",
	"臺灣":        "TW",
	"japan":     "JP",
	"日本":        "JP",
	"eu":        "EU",
	"europe":    "EU",
	"歐盟":        "EU",
	"usa":       "US",
	"us":        "US",
	"美國":        "US",
	"singapore": "SG",
	"新加坡":       "SG",
	"korea":     "KR",
	"韓國":        "KR",
}

// CountryCode resolves a jurisdiction name to its country code. Inputs that
// already look like a code pass through uppercased; unknown names return "".
func CountryCode(jurisdiction string) string {
	j := strings.ToLower(strings.TrimSpace(jurisdiction))
	if code, ok := jurisdictionCodes[j]; ok {
		return code
	}
	if len(j) == 2 {
		return strings.ToUpper(j)
	}
	return ""
}
