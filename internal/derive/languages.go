package derive

import (
	"sort"
)

// deriveLanguages prefers the provider language breakdown (normalizing the
// 0-1 vs 0-100 scale); otherwise it projects languages from the normalized
// country list through the static country-to-language weight table, summing
// contributions across countries and renormalizing to sum to 1.
func (e *Engine) deriveLanguages(raw RawPayload, countries []Slice) ([]Slice, Provenance) {
	if list, ok := fieldAudienceLanguages.List(raw); ok {
		if slices := parseSlices(list); len(slices) > 0 {
			return slices, ProvenanceProviderModelled
		}
	}

	if slices := e.languagesFromCountries(countries); len(slices) > 0 {
		return slices, ProvenanceEstimated
	}
	return nil, ""
}

func (e *Engine) languagesFromCountries(countries []Slice) []Slice {
	if len(countries) == 0 {
		return nil
	}
	tbl := e.tables.Current()

	// Sum in sorted key order so repeated derivations produce bit-identical
	// floats; map iteration order would shuffle the additions otherwise.
	weights := make(map[string]float64)
	var total float64
	for _, country := range countries {
		code, _, ok := tbl.ResolveCountry(country.Name)
		if !ok || code == "" {
			continue
		}
		shares := tbl.LanguagesFor(code)
		names := make([]string, 0, len(shares))
		for language := range shares {
			names = append(names, language)
		}
		sort.Strings(names)
		for _, language := range names {
			contribution := country.Percent * shares[language]
			weights[language] += contribution
			total += contribution
		}
	}
	if total == 0 {
		return nil
	}

	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)
	languages := make([]Slice, 0, len(names))
	for _, name := range names {
		languages = append(languages, Slice{Name: name, Percent: weights[name] / total})
	}
	sort.SliceStable(languages, func(i, j int) bool {
		if languages[i].Percent == languages[j].Percent {
			return languages[i].Name < languages[j].Name
		}
		return languages[i].Percent > languages[j].Percent
	})
	return languages
}
