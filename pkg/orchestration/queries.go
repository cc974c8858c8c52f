package orchestration

import "strings"

// corporateSuffixes are stripped from a corporate name before it is used
// to build a second, complementary search query — they add search noise
// without narrowing results. Ported from discovery_service.py's
// _build_search_queries.
var corporateSuffixes = []string{" LTDA", " S.A.", " EIRELI", " ME", " EPP", " S/A"}

// BuildSearchQueries builds up to two search queries for a company: one
// from its trade name plus municipality, one from its corporate name
// (suffixes stripped) plus municipality, skipping the second when it
// would duplicate the first. Grounded on discovery_service.py's
// _build_search_queries.
func BuildSearchQueries(corporateName, tradeName, municipality string) []string {
	tn := strings.TrimSpace(tradeName)
	cn := strings.TrimSpace(corporateName)
	city := strings.TrimSpace(municipality)

	var queries []string
	if tn != "" {
		queries = append(queries, strings.TrimSpace(tn+" "+city+" site oficial"))
	}

	cleaned := cn
	for stripped := true; stripped; {
		stripped = false
		for _, suffix := range corporateSuffixes {
			if strings.HasSuffix(cleaned, suffix) {
				cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, suffix))
				stripped = true
			}
		}
	}
	cleaned = strings.TrimSpace(cleaned)

	if cleaned != "" && (tn == "" || !strings.EqualFold(cleaned, tn)) {
		queries = append(queries, strings.TrimSpace(cleaned+" "+city+" site oficial"))
	}

	return queries
}
