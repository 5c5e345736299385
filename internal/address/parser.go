// Package address splits free-text Korean addresses into administrative
// components and scores similarity between two addresses. It is used both to
// group crawl targets and to validate geocoding results.
package address

import (
	"regexp"
	"strings"
)

// Components is the parsed form of an address. Any field may be empty.
type Components struct {
	Province string
	City     string
	Town     string
	Detail   string
}

// provinceEntry maps a common abbreviation to the full administrative name.
// Order matters: matching walks the list, so it must stay deterministic.
type provinceEntry struct {
	abbr string
	full string
}

var provinces = []provinceEntry{
	{"서울", "서울특별시"},
	{"부산", "부산광역시"},
	{"대구", "대구광역시"},
	{"인천", "인천광역시"},
	{"광주", "광주광역시"},
	{"대전", "대전광역시"},
	{"울산", "울산광역시"},
	{"세종", "세종특별자치시"},
	{"경기", "경기도"},
	{"강원", "강원도"},
	{"충북", "충청북도"},
	{"충남", "충청남도"},
	{"전북", "전라북도"},
	{"전남", "전라남도"},
	{"경북", "경상북도"},
	{"경남", "경상남도"},
	{"제주", "제주특별자치도"},
}

var provinceSuffixes = []string{"특별시", "광역시", "자치시", "자치도"}

var (
	bracketRe = regexp.MustCompile(`\([^)]*\)`)
	spaceRe   = regexp.MustCompile(`\s+`)
	digitRe   = regexp.MustCompile(`\d+`)
)

// minAddressRunes is the shortest input Parse will attempt to split.
const minAddressRunes = 5

// Parse splits an address into province, city, town and detail. Inputs
// shorter than five runes yield all-empty components.
func Parse(addr string) Components {
	addr = strings.TrimSpace(addr)
	if len([]rune(addr)) < minAddressRunes {
		return Components{}
	}

	tokens := strings.Fields(strings.ReplaceAll(addr, ",", " "))

	var c Components
	used := make(map[int]bool)

	if i, full := findProvince(tokens); i >= 0 {
		c.Province = full
		used[i] = true
	}
	if i, city := findCity(tokens, used); i >= 0 {
		c.City = city
		used[i] = true
	}
	if i, town := findTown(tokens, used); i >= 0 {
		c.Town = town
		used[i] = true
	}

	var rest []string
	for i, tok := range tokens {
		if !used[i] {
			rest = append(rest, tok)
		}
	}
	c.Detail = strings.Join(rest, " ")
	return c
}

func findProvince(tokens []string) (int, string) {
	// Exact abbreviation or full-name match first.
	for i, tok := range tokens {
		for _, p := range provinces {
			if tok == p.abbr || tok == p.full {
				return i, p.full
			}
		}
	}
	// Fall back to substring matching ("서울시" still means 서울특별시).
	for i, tok := range tokens {
		for _, p := range provinces {
			if strings.Contains(tok, p.abbr) {
				return i, p.full
			}
		}
	}
	return -1, ""
}

func findCity(tokens []string, used map[int]bool) (int, string) {
	for i, tok := range tokens {
		if used[i] {
			continue
		}
		if isProvinceLevel(tok) {
			continue
		}
		if strings.HasSuffix(tok, "구") || strings.HasSuffix(tok, "시") || strings.HasSuffix(tok, "군") {
			return i, tok
		}
		// "강남구청" / "강남구역" style tokens collapse to the gu itself.
		if strings.Contains(tok, "구") && (strings.HasSuffix(tok, "청") || strings.HasSuffix(tok, "역")) {
			trimmed := strings.TrimSuffix(strings.TrimSuffix(tok, "청"), "역")
			if !strings.HasSuffix(trimmed, "구") {
				trimmed += "구"
			}
			return i, trimmed
		}
	}
	return -1, ""
}

func isProvinceLevel(tok string) bool {
	for _, suffix := range provinceSuffixes {
		if strings.Contains(tok, suffix) {
			return true
		}
	}
	return strings.HasSuffix(tok, "도")
}

func findTown(tokens []string, used map[int]bool) (int, string) {
	for i, tok := range tokens {
		if used[i] {
			continue
		}
		if strings.ContainsAny(tok, "동면읍리") {
			return i, tok
		}
	}
	return -1, ""
}

// Normalize strips bracketed annotations, replaces commas with spaces and
// collapses runs of whitespace.
func Normalize(addr string) string {
	s := bracketRe.ReplaceAllString(strings.TrimSpace(addr), "")
	s = strings.ReplaceAll(s, ",", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Valid reports whether the address is long enough to parse and yields at
// least a province and a city.
func Valid(addr string) bool {
	if len([]rune(strings.TrimSpace(addr))) < minAddressRunes {
		return false
	}
	c := Parse(addr)
	return c.Province != "" && c.City != ""
}

// Similarity scores two addresses in [0,1]. Province and city matches weigh
// 3 each, town 2 (digit-stripped equality counts half), and free-text detail
// overlap 1. Dimensions absent from either side do not enter the denominator.
func Similarity(a, b string) float64 {
	ca, cb := Parse(a), Parse(b)

	var score, total float64

	if ca.Province != "" && cb.Province != "" {
		total += 3
		if ca.Province == cb.Province {
			score += 3
		}
	}
	if ca.City != "" && cb.City != "" {
		total += 3
		if ca.City == cb.City {
			score += 3
		}
	}
	if ca.Town != "" && cb.Town != "" {
		total += 2
		switch {
		case ca.Town == cb.Town:
			score += 2
		case SimilarTown(ca.Town, cb.Town):
			score += 1
		}
	}
	if ca.Detail != "" && cb.Detail != "" {
		total += 1
		score += jaccard(ca.Detail, cb.Detail)
	}

	if total == 0 {
		return 0
	}
	return score / total
}

// SimilarTown reports whether two towns are equal once trailing numbering is
// removed, so 개포1동 matches 개포동.
func SimilarTown(t1, t2 string) bool {
	return StripDigits(t1) == StripDigits(t2) && t1 != "" && t2 != ""
}

// StripDigits removes all digit groups from a token.
func StripDigits(s string) string {
	return digitRe.ReplaceAllString(s, "")
}

func jaccard(a, b string) float64 {
	setA := map[string]bool{}
	for _, t := range strings.Fields(a) {
		setA[t] = true
	}
	setB := map[string]bool{}
	for _, t := range strings.Fields(b) {
		setB[t] = true
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inter := 0
	for t := range setA {
		if setB[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
