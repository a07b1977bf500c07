package digest

import (
	"sort"
	"strings"
)

// regionAncestors maps an admin region to its ancestors, direct parent first.
// Keys and values are lowercase; matching against event regions is
// case-insensitive. The table covers the towns and states that actually show
// up in coverage of the two countries, not a full gazetteer.
var regionAncestors = map[string][]string{
	// Sudan: towns.
	"el fasher":      {"north darfur", "darfur"},
	"al-fashir":      {"north darfur", "darfur"},
	"kutum":          {"north darfur", "darfur"},
	"tawila":         {"north darfur", "darfur"},
	"nyala":          {"south darfur", "darfur"},
	"ed daein":       {"east darfur", "darfur"},
	"el geneina":     {"west darfur", "darfur"},
	"zalingei":       {"central darfur", "darfur"},
	"el obeid":       {"north kordofan", "kordofan"},
	"kadugli":        {"south kordofan", "kordofan"},
	"dilling":        {"south kordofan", "kordofan"},
	"el fula":        {"west kordofan", "kordofan"},
	"babanusa":       {"west kordofan", "kordofan"},
	"omdurman":       {"khartoum"},
	"bahri":          {"khartoum"},
	"khartoum north": {"khartoum"},
	"wad madani":     {"al jazirah"},
	"port sudan":     {"red sea"},
	"atbara":         {"river nile"},
	"merowe":         {"northern"},
	"ed damazin":     {"blue nile"},

	// Sudan: states under macro regions.
	"north darfur":   {"darfur"},
	"south darfur":   {"darfur"},
	"east darfur":    {"darfur"},
	"west darfur":    {"darfur"},
	"central darfur": {"darfur"},
	"north kordofan": {"kordofan"},
	"south kordofan": {"kordofan"},
	"west kordofan":  {"kordofan"},
	"gezira":         {"al jazirah"},

	// South Sudan: towns.
	"juba":    {"central equatoria"},
	"yei":     {"central equatoria"},
	"torit":   {"eastern equatoria"},
	"nimule":  {"eastern equatoria"},
	"yambio":  {"western equatoria"},
	"tambura": {"western equatoria"},
	"bor":     {"jonglei"},
	"akobo":   {"jonglei"},
	"bentiu":  {"unity"},
	"leer":    {"unity"},
	"malakal": {"upper nile"},
	"nasir":   {"upper nile"},
	"renk":    {"upper nile"},
	"rumbek":  {"lakes"},
	"kuajok":  {"warrap"},
	"tonj":    {"warrap"},
	"wau":     {"western bahr el ghazal"},
	"aweil":   {"northern bahr el ghazal"},
	"pibor":   {"greater pibor"},

	// South Sudan: states under macro regions.
	"central equatoria":      {"equatoria"},
	"eastern equatoria":      {"equatoria"},
	"western equatoria":      {"equatoria"},
	"northern bahr el ghazal": {"bahr el ghazal"},
	"western bahr el ghazal":  {"bahr el ghazal"},
}

func ancestors(region string) []string {
	return regionAncestors[strings.ToLower(strings.TrimSpace(region))]
}

func directParent(region string) string {
	if anc := ancestors(region); len(anc) > 0 {
		return anc[0]
	}
	return ""
}

// regionsMatch reports whether two individual regions refer to overlapping
// territory: the same name, one containing the other, or a shared ancestor.
func regionsMatch(a, b string) bool {
	la := strings.ToLower(strings.TrimSpace(a))
	lb := strings.ToLower(strings.TrimSpace(b))
	if la == lb {
		return true
	}
	ancA, ancB := ancestors(la), ancestors(lb)
	for _, anc := range ancA {
		if anc == lb {
			return true
		}
	}
	for _, anc := range ancB {
		if anc == la {
			return true
		}
	}
	for _, x := range ancA {
		for _, y := range ancB {
			if x == y {
				return true
			}
		}
	}
	return false
}

// RegionsOverlap reports whether two region lists plausibly cover the same
// territory. An empty list overlaps with anything: an event with no regions
// never blocks a bundle on geography.
func RegionsOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	for _, ra := range a {
		for _, rb := range b {
			if regionsMatch(ra, rb) {
				return true
			}
		}
	}
	return false
}

// CollapseRegions prepares a region list for display. A state appearing next
// to one of its towns collapses to "State (Town)"; a macro region appearing
// next to anything more specific inside it is dropped as redundant.
func CollapseRegions(regions []string) []string {
	var list []string
	seen := make(map[string]bool, len(regions))
	for _, r := range regions {
		r = strings.TrimSpace(r)
		if r == "" || seen[strings.ToLower(r)] {
			continue
		}
		seen[strings.ToLower(r)] = true
		list = append(list, r)
	}
	if len(list) <= 1 {
		return list
	}

	// Children present in the list, grouped under their direct parent when the
	// parent is present too.
	childrenOf := make(map[string][]string)
	consumed := make(map[string]bool)
	for _, r := range list {
		parent := directParent(r)
		if parent == "" || !seen[parent] {
			continue
		}
		childrenOf[parent] = append(childrenOf[parent], r)
		consumed[strings.ToLower(r)] = true
	}

	// Macro regions are dropped when anything beneath them is also listed.
	covered := make(map[string]bool)
	for _, r := range list {
		for _, anc := range ancestors(r) {
			covered[anc] = true
		}
	}

	var out []string
	for _, r := range list {
		key := strings.ToLower(r)
		if consumed[key] {
			continue
		}
		if kids := childrenOf[key]; len(kids) > 0 {
			sort.Strings(kids)
			out = append(out, r+" ("+strings.Join(kids, ", ")+")")
			continue
		}
		if len(ancestors(r)) == 0 && covered[key] {
			continue
		}
		out = append(out, r)
	}
	return out
}
