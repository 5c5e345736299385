package geocode

import (
	"regexp"
	"strings"
)

var (
	bracketRe     = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]|㈜|㈔`)
	corpTailRe    = regexp.MustCompile(`\s+(주식회사|유한회사|Inc\.?|Corp\.?|Ltd\.?|Co\.?)$`)
	corpHeadRe    = regexp.MustCompile(`^(주식회사|유한회사)\s+`)
	spaceRe       = regexp.MustCompile(`\s+`)
	complexTailRe = regexp.MustCompile(`[가-힣]*상가\s*\S*`)
	floorTailRes  = []*regexp.Regexp{
		regexp.MustCompile(`\s+지하\d*$`),
		regexp.MustCompile(`\s+\d+층$`),
		regexp.MustCompile(`\s+[A-Z]\d*호$`),
		regexp.MustCompile(`\s+\d+\.\d+호$`),
		regexp.MustCompile(`\s+\d+호$`),
	}
	lotNumberRe  = regexp.MustCompile(`^\d+(-\d+)?$`)
	leadNumberRe = regexp.MustCompile(`^(\d+(-\d+)?)`)
	anyDigitRe   = regexp.MustCompile(`\d`)
)

// CleanName strips corporate-suffix noise from a merchant name: company-form
// markers, bracketed aliases and trailing incorporation tokens.
func CleanName(name string) string {
	s := bracketRe.ReplaceAllString(strings.TrimSpace(name), "")
	s = corpHeadRe.ReplaceAllString(s, "")
	s = corpTailRe.ReplaceAllString(s, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// CleanAddress reduces a listing address to a search-friendly form: brackets
// and building/floor/unit suffixes go, and the address is truncated at the
// first lot number.
func CleanAddress(addr string) string {
	s := bracketRe.ReplaceAllString(strings.TrimSpace(addr), "")
	s = complexTailRe.ReplaceAllString(s, "")
	for _, re := range floorTailRes {
		s = re.ReplaceAllString(s, "")
	}

	var kept []string
	for _, tok := range strings.Fields(s) {
		switch {
		case strings.ContainsAny(tok, "동면읍리"):
			kept = append(kept, tok)
		case lotNumberRe.MatchString(tok):
			kept = append(kept, tok)
			return strings.Join(kept, " ")
		case !anyDigitRe.MatchString(tok):
			kept = append(kept, tok)
		default:
			if m := leadNumberRe.FindString(tok); m != "" {
				kept = append(kept, m)
			}
			return strings.Join(kept, " ")
		}
	}
	return strings.Join(kept, " ")
}

// BuildScenarios produces the ordered query-narrowing list for a cleaned
// name and address: name plus the full address, then name plus progressively
// shorter address prefixes, then the bare name. Duplicates are dropped while
// preserving order.
func BuildScenarios(name, addr string) []string {
	parts := strings.Fields(addr)

	var raw []string
	if len(parts) > 0 {
		raw = append(raw, name+" "+strings.Join(parts, " "))
	}
	for i := len(parts) - 1; i > 0; i-- {
		raw = append(raw, name+" "+strings.Join(parts[:i], " "))
	}
	raw = append(raw, name)

	seen := make(map[string]bool, len(raw))
	scenarios := make([]string, 0, len(raw))
	for _, q := range raw {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		scenarios = append(scenarios, q)
	}
	return scenarios
}
