package derive

import (
	"sort"
)

const maxStates = 20

// deriveCountries normalizes the provider country breakdown to canonical
// English names, merging entries that resolve to the same country.
// Unresolvable values pass through with their raw name, never dropped.
func (e *Engine) deriveCountries(raw RawPayload) []Slice {
	list, ok := fieldAudienceCountries.List(raw)
	if !ok {
		return nil
	}
	parsed := parseSlices(list)
	if len(parsed) == 0 {
		return nil
	}

	tbl := e.tables.Current()
	merged := make(map[string]float64, len(parsed))
	order := make([]string, 0, len(parsed))
	for _, slice := range parsed {
		_, name, _ := tbl.ResolveCountry(slice.Name)
		if name == "" {
			name = slice.Name
		}
		if _, seen := merged[name]; !seen {
			order = append(order, name)
		}
		merged[name] += slice.Percent
	}

	countries := make([]Slice, 0, len(order))
	for _, name := range order {
		countries = append(countries, Slice{Name: name, Percent: merged[name]})
	}
	sortSlices(countries)
	return countries
}

// deriveCities parses the city breakdown without renaming: city names are
// served as the provider spells them.
func deriveCities(raw RawPayload) []Slice {
	list, ok := fieldAudienceCities.List(raw)
	if !ok {
		return nil
	}
	return parseSlices(list)
}

// deriveStates maps cities onto states through the curated lookup table.
// Unmapped cities are silently excluded rather than guessed; state
// percentages are the sums of their contributing cities, sorted descending
// and capped to the top 20.
func (e *Engine) deriveStates(cities []Slice) []Slice {
	if len(cities) == 0 {
		return nil
	}
	tbl := e.tables.Current()

	merged := make(map[string]float64)
	order := make([]string, 0, len(cities))
	for _, city := range cities {
		state, ok := tbl.StateForCity(city.Name)
		if !ok {
			continue
		}
		if _, seen := merged[state]; !seen {
			order = append(order, state)
		}
		merged[state] += city.Percent
	}
	if len(merged) == 0 {
		return nil
	}

	states := make([]Slice, 0, len(order))
	for _, name := range order {
		states = append(states, Slice{Name: name, Percent: merged[name]})
	}
	sort.SliceStable(states, func(i, j int) bool {
		if states[i].Percent == states[j].Percent {
			return states[i].Name < states[j].Name
		}
		return states[i].Percent > states[j].Percent
	})
	if len(states) > maxStates {
		states = states[:maxStates]
	}
	return states
}
