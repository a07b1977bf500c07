package extract

import "strings"

// actorAliases maps lowercase raw spellings to canonical actor names. Every
// canonical name's own lowercase form is also a key, so normalization is
// idempotent.
var actorAliases = map[string]string{
	// Governments and armed forces.
	"goss":                                    "Government of South Sudan",
	"government of south sudan":               "Government of South Sudan",
	"south sudan government":                  "Government of South Sudan",
	"south sudanese government":               "Government of South Sudan",
	"r-tgonu":                                 "Government of South Sudan",
	"transitional government of national unity": "Government of South Sudan",
	"government of sudan":                     "Government of Sudan",
	"sudan government":                        "Government of Sudan",
	"sudanese government":                     "Government of Sudan",
	"saf":                                     "Sudanese Armed Forces",
	"sudanese armed forces":                   "Sudanese Armed Forces",
	"sudan armed forces":                      "Sudanese Armed Forces",
	"sudanese army":                           "Sudanese Armed Forces",
	"sudan army":                              "Sudanese Armed Forces",
	"rsf":                                     "Rapid Support Forces",
	"rapid support forces":                    "Rapid Support Forces",
	"rapid support force":                     "Rapid Support Forces",
	"sspdf":                                   "SSPDF",
	"south sudan people's defence forces":     "SSPDF",
	"south sudan people's defense forces":     "SSPDF",

	// Movements and parties.
	"splm":                   "SPLM",
	"sudan people's liberation movement": "SPLM",
	"splm-io":                "SPLM-IO",
	"splm/a-io":              "SPLM-IO",
	"spla-io":                "SPLM-IO",
	"splm/a io":              "SPLM-IO",
	"splm in opposition":     "SPLM-IO",
	"splm-in-opposition":     "SPLM-IO",
	"jem":                    "Justice and Equality Movement",
	"justice and equality movement": "Justice and Equality Movement",
	"slm":                    "Sudan Liberation Movement",
	"sudan liberation movement": "Sudan Liberation Movement",

	// People.
	"salva kiir":                "Salva Kiir",
	"president kiir":            "Salva Kiir",
	"president salva kiir":      "Salva Kiir",
	"salva kiir mayardit":       "Salva Kiir",
	"kiir":                      "Salva Kiir",
	"riek machar":               "Riek Machar",
	"dr riek machar":            "Riek Machar",
	"dr. riek machar":           "Riek Machar",
	"machar":                    "Riek Machar",
	"hemedti":                   "Hemedti",
	"hemeti":                    "Hemedti",
	"hemetti":                   "Hemedti",
	"dagalo":                    "Hemedti",
	"mohamed hamdan dagalo":     "Hemedti",
	"gen. mohamed hamdan dagalo": "Hemedti",
	"abdel fattah al-burhan":    "Abdel Fattah al-Burhan",
	"al-burhan":                 "Abdel Fattah al-Burhan",
	"burhan":                    "Abdel Fattah al-Burhan",
	"general al-burhan":         "Abdel Fattah al-Burhan",
	"gen. abdel fattah al-burhan": "Abdel Fattah al-Burhan",

	// International organizations.
	"un refugee agency": "UNHCR",
	"unhcr":             "UNHCR",
	"united nations high commissioner for refugees": "UNHCR",
	"unmiss": "UNMISS",
	"un mission in south sudan":            "UNMISS",
	"united nations mission in south sudan": "UNMISS",
	"wfp":                  "WFP",
	"world food programme": "WFP",
	"world food program":   "WFP",
	"unicef":               "UNICEF",
	"ocha":                 "OCHA",
	"un ocha":              "OCHA",
	"icrc":                 "ICRC",
	"international committee of the red cross": "ICRC",
	"msf": "MSF",
	"doctors without borders":  "MSF",
	"medecins sans frontieres": "MSF",
	"igad":                     "IGAD",
	"intergovernmental authority on development": "IGAD",
	"african union": "African Union",
	"au":            "African Union",
	"united nations": "United Nations",
	"un":             "United Nations",
}

// CanonicalActor maps one raw actor name through the alias table. Unknown
// actors pass through trimmed but otherwise untouched.
func CanonicalActor(raw string) string {
	actor := strings.TrimSpace(raw)
	if canonical, ok := actorAliases[strings.ToLower(actor)]; ok {
		return canonical
	}
	return actor
}

// NormalizeActors maps raw actor names through the alias table and dedups
// case-insensitively, keeping the first occurrence.
func NormalizeActors(raw []string) []string {
	var out []string
	seen := make(map[string]bool, len(raw))
	for _, actor := range raw {
		actor = CanonicalActor(actor)
		if actor == "" {
			continue
		}
		key := strings.ToLower(actor)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, actor)
	}
	return out
}
