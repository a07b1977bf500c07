package ingest

import "strings"

// Keyword tables driving the relevance filter. STRONG keywords are
// title-sufficient: one hit accepts the article outright. SUPPORTING
// keywords are counted across the body and only accept in combination.
// Matching is case-insensitive substring matching, so multi-word entries are
// safe and short entries need to be distinctive.

var strongSouthSudan = []string{
	"south sudan",
	"south sudanese",
	"salva kiir",
	"riek machar",
	"unmiss",
	"jonglei",
	"upper nile",
	"equatoria",
	"bahr el ghazal",
	"abyei",
	"malakal",
	"bentiu",
	"unity state",
	"warrap",
	"pibor",
}

var supportingSouthSudan = []string{
	"juba",
	"kiir",
	"machar",
	"unmiss",
	"splm",
	"spla",
	"jonglei",
	"malakal",
	"bentiu",
	"wau",
	"torit",
	"yei",
	"bor town",
	"aweil",
	"rumbek",
	"yambio",
	"kuajok",
	"equatoria",
	"upper nile",
	"unity state",
	"warrap",
	"lakes state",
	"nuer",
	"dinka",
	"murle",
	"abyei",
	"igad",
}

var strongSudan = []string{
	"sudan war",
	"sudan conflict",
	"sudanese army",
	"sudanese armed forces",
	"khartoum",
	"rapid support forces",
	"rsf",
	"al-burhan",
	"burhan",
	"hemedti",
	"hemeti",
	"darfur",
	"el fasher",
	"al-fashir",
	"omdurman",
	"port sudan",
}

var supportingSudan = []string{
	"sudan",
	"sudanese",
	"khartoum",
	"omdurman",
	"darfur",
	"rsf",
	"rapid support",
	"burhan",
	"hemedti",
	"hemeti",
	"el fasher",
	"nyala",
	"el geneina",
	"zalingei",
	"port sudan",
	"wad madani",
	"gezira",
	"kordofan",
	"el obeid",
	"kadugli",
	"kassala",
	"blue nile",
	"merowe",
	"jeddah talks",
}

// Relevant decides whether an item belongs in the pipeline. title and body
// are compared case-insensitively; body is the concatenated snippet and full
// content, pre-truncation.
func Relevant(title, body string) bool {
	t := strings.ToLower(title)
	b := strings.ToLower(body)

	if containsAny(t, strongSouthSudan) || containsAny(t, strongSudan) {
		return true
	}
	if strings.Contains(t, "sudan") && !strings.Contains(t, "south sudan") {
		if countMatches(b, supportingSudan) >= 2 {
			return true
		}
	}
	if countMatches(b, supportingSouthSudan) >= 2 {
		return true
	}
	if countMatches(b, supportingSudan) >= 3 {
		return true
	}
	return false
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// countMatches counts distinct keywords present, not raw occurrences, so an
// article repeating one place name doesn't clear the threshold alone.
func countMatches(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}
