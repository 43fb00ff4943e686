package derive

import (
	"sort"
	"strings"
)

// parseSlices converts a provider breakdown list into Slices, normalizing
// whether the input scale is 0-1 or 0-100 and dropping negative or nameless
// entries. The result is sorted descending by percent.
func parseSlices(list []any) []Slice {
	slices := make([]Slice, 0, len(list))
	scaleDown := false
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := sliceName(entry)
		if name == "" {
			continue
		}
		percent, ok := sliceWeight(entry)
		if !ok || percent < 0 {
			continue
		}
		if percent > 1 {
			scaleDown = true
		}
		slices = append(slices, Slice{Name: name, Percent: percent})
	}
	if scaleDown {
		for i := range slices {
			slices[i].Percent /= 100
		}
	}
	sortSlices(slices)
	return slices
}

func sliceName(entry map[string]any) string {
	for _, key := range []string{"name", "code", "category", "label", "gender", "range"} {
		if s, ok := entry[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func sliceWeight(entry map[string]any) (float64, bool) {
	for _, key := range []string{"percent", "weight", "value", "share"} {
		if value, ok := entry[key]; ok {
			if n, numeric := asFloat(value); numeric {
				return n, true
			}
		}
	}
	return 0, false
}

func sortSlices(slices []Slice) {
	sort.SliceStable(slices, func(i, j int) bool {
		return slices[i].Percent > slices[j].Percent
	})
}

// deriveInterests resolves the interest breakdown through three tiers:
// provider tags carrying percentages, then a keyword scan of recent post
// captions and hashtags against the fixed taxonomy, then the post-type
// distribution. Each tier runs only when the prior one yields nothing usable.
func (e *Engine) deriveInterests(raw RawPayload) ([]Slice, Provenance) {
	if list, ok := fieldAudienceInterests.List(raw); ok {
		if slices := parseSlices(list); len(slices) > 0 {
			return slices, ProvenanceProviderModelled
		}
	}

	if slices := e.interestsFromCaptions(raw); len(slices) > 0 {
		return slices, ProvenanceEstimated
	}

	if slices := interestsFromPostTypes(raw); len(slices) > 0 {
		return slices, ProvenanceEstimated
	}

	return nil, ""
}

// interestsFromCaptions counts, per category, the fraction of keyword-tagged
// posts whose caption or hashtags match that category.
func (e *Engine) interestsFromCaptions(raw RawPayload) []Slice {
	posts, ok := fieldRecentPosts.List(raw)
	if !ok {
		return nil
	}
	taxonomy := e.tables.Current().CategoryKeywords()

	matches := make(map[string]int, len(taxonomy))
	tagged := 0
	for _, item := range posts {
		post, isObj := item.(map[string]any)
		if !isObj {
			continue
		}
		text := postText(post)
		if text == "" {
			continue
		}
		matchedAny := false
		for category, keywords := range taxonomy {
			for _, keyword := range keywords {
				if strings.Contains(text, keyword) {
					matches[category]++
					matchedAny = true
					break
				}
			}
		}
		if matchedAny {
			tagged++
		}
	}
	if tagged == 0 {
		return nil
	}

	slices := make([]Slice, 0, len(matches))
	for category, count := range matches {
		slices = append(slices, Slice{Name: category, Percent: float64(count) / float64(tagged)})
	}
	sortSlices(slices)
	// Equal percentages tie-break alphabetically for determinism.
	sort.SliceStable(slices, func(i, j int) bool {
		if slices[i].Percent == slices[j].Percent {
			return slices[i].Name < slices[j].Name
		}
		return slices[i].Percent > slices[j].Percent
	})
	return slices
}

// interestsFromPostTypes falls back to the image/video/carousel ratio of
// recent posts when no hashtag matches occur.
func interestsFromPostTypes(raw RawPayload) []Slice {
	posts, ok := fieldRecentPosts.List(raw)
	if !ok {
		return nil
	}
	labels := map[string]string{
		"image":    "Photos",
		"video":    "Videos",
		"carousel": "Carousels",
	}
	counts := make(map[string]int, len(labels))
	total := 0
	for _, item := range posts {
		post, isObj := item.(map[string]any)
		if !isObj {
			continue
		}
		kind := postType(post)
		if kind == "" {
			continue
		}
		counts[kind]++
		total++
	}
	if total == 0 {
		return nil
	}
	slices := make([]Slice, 0, len(counts))
	for kind, count := range counts {
		slices = append(slices, Slice{Name: labels[kind], Percent: float64(count) / float64(total)})
	}
	sort.SliceStable(slices, func(i, j int) bool {
		if slices[i].Percent == slices[j].Percent {
			return slices[i].Name < slices[j].Name
		}
		return slices[i].Percent > slices[j].Percent
	})
	return slices
}
