// Package tables holds the static normalization data the derivation engine
// consumes: country name resolution, city-to-state mapping, country-to-language
// weights, and the category keyword taxonomy. The data ships embedded and can
// be overridden per-file from a folder at startup, keeping the resolution
// algorithms table-driven and independent of the data's size.
package tables

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

//go:embed data/*.json
var defaultData embed.FS

const (
	countriesFile  = "countries.json"
	slugsFile      = "slugs.json"
	citiesFile     = "cities.json"
	languagesFile  = "languages.json"
	categoriesFile = "categories.json"
	russianFile    = "russian.json"
)

type countryRecord struct {
	Code string `json:"code"`
	Name string `json:"name"`
	RU   string `json:"ru"`
}

// Tables is one immutable snapshot of all normalization data. Reloads swap
// the whole snapshot; readers never observe a half-updated state.
type Tables struct {
	nameByCode       map[string]string
	codeByName       map[string]string
	codeBySlug       map[string]string
	englishByRussian map[string]string
	stateByCity      map[string]string
	languagesByCode  map[string]map[string]float64
	keywordsByGroup  map[string][]string
}

// Load assembles a snapshot from the embedded defaults, then overrides
// individual tables from files of the same name found in folder. An empty
// folder path keeps the defaults untouched.
func Load(folder string) (*Tables, error) {
	var countries []countryRecord
	if err := readTable(folder, countriesFile, &countries); err != nil {
		return nil, err
	}
	slugs := map[string]string{}
	if err := readTable(folder, slugsFile, &slugs); err != nil {
		return nil, err
	}
	cities := map[string]string{}
	if err := readTable(folder, citiesFile, &cities); err != nil {
		return nil, err
	}
	languages := map[string]map[string]float64{}
	if err := readTable(folder, languagesFile, &languages); err != nil {
		return nil, err
	}
	categories := map[string][]string{}
	if err := readTable(folder, categoriesFile, &categories); err != nil {
		return nil, err
	}
	russian := map[string]string{}
	if err := readTable(folder, russianFile, &russian); err != nil {
		return nil, err
	}

	t := &Tables{
		nameByCode:       make(map[string]string, len(countries)),
		codeByName:       make(map[string]string, 2*len(countries)),
		codeBySlug:       make(map[string]string, len(slugs)),
		englishByRussian: make(map[string]string, len(russian)),
		stateByCity:      make(map[string]string, len(cities)),
		languagesByCode:  make(map[string]map[string]float64, len(languages)),
		keywordsByGroup:  make(map[string][]string, len(categories)),
	}

	for _, rec := range countries {
		code := strings.ToUpper(strings.TrimSpace(rec.Code))
		if len(code) != 2 || rec.Name == "" {
			return nil, fmt.Errorf("tables: invalid country record %q/%q", rec.Code, rec.Name)
		}
		t.nameByCode[code] = rec.Name
		t.codeByName[strings.ToLower(rec.Name)] = code
		if rec.RU != "" {
			t.codeByName[strings.ToLower(rec.RU)] = code
		}
	}
	for slug, code := range slugs {
		t.codeBySlug[strings.ToLower(strings.TrimSpace(slug))] = strings.ToUpper(code)
	}
	for ru, en := range russian {
		t.englishByRussian[strings.ToLower(strings.TrimSpace(ru))] = en
	}
	for city, state := range cities {
		t.stateByCity[strings.ToLower(strings.TrimSpace(city))] = state
	}
	for code, weights := range languages {
		t.languagesByCode[strings.ToUpper(code)] = weights
	}
	for group, keywords := range categories {
		lowered := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			lowered = append(lowered, strings.ToLower(kw))
		}
		t.keywordsByGroup[group] = lowered
	}
	return t, nil
}

// readTable decodes the embedded default for name, then replaces it with the
// folder override when one exists.
func readTable(folder, name string, out any) error {
	data, err := defaultData.ReadFile("data/" + name)
	if err != nil {
		return fmt.Errorf("tables: embedded %s: %w", name, err)
	}
	if folder != "" {
		override := filepath.Join(folder, name)
		if fileData, err := os.ReadFile(override); err == nil {
			data = fileData
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("tables: read %s: %w", override, err)
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("tables: parse %s: %w", name, err)
	}
	return nil
}

// ResolveCountry normalizes a raw provider country value to a canonical
// English name, trying in order: direct ISO-2 code, curated slug table,
// reverse lookup over English and Russian locale names, and the Russian
// translation table. When every step fails, the raw value passes through
// unchanged with ok=false so callers never drop a country.
func (t *Tables) ResolveCountry(raw string) (code, name string, ok bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", false
	}

	if len(trimmed) == 2 {
		upper := strings.ToUpper(trimmed)
		if canonical, found := t.nameByCode[upper]; found {
			return upper, canonical, true
		}
	}

	lower := strings.ToLower(trimmed)
	if code, found := t.codeBySlug[lower]; found {
		return code, t.nameByCode[code], true
	}
	if code, found := t.codeByName[lower]; found {
		return code, t.nameByCode[code], true
	}
	if english, found := t.englishByRussian[lower]; found {
		if code, found := t.codeByName[strings.ToLower(english)]; found {
			return code, t.nameByCode[code], true
		}
		return "", english, true
	}

	return "", trimmed, false
}

// StateForCity returns the curated state for a city name. Unmapped cities
// report ok=false and are excluded from state derivation, never guessed.
func (t *Tables) StateForCity(city string) (string, bool) {
	state, ok := t.stateByCity[strings.ToLower(strings.TrimSpace(city))]
	return state, ok
}

// LanguagesFor returns the language weight distribution for an ISO-2 code.
func (t *Tables) LanguagesFor(code string) map[string]float64 {
	return t.languagesByCode[strings.ToUpper(code)]
}

// CategoryKeywords exposes the fixed keyword taxonomy keyed by category name.
func (t *Tables) CategoryKeywords() map[string][]string {
	return t.keywordsByGroup
}

// Provider hands out the current snapshot and accepts atomically swapped
// replacements from the watcher.
type Provider struct {
	current atomic.Pointer[Tables]
}

// NewProvider wraps an initial snapshot.
func NewProvider(t *Tables) *Provider {
	p := &Provider{}
	p.current.Store(t)
	return p
}

// Current returns the live snapshot.
func (p *Provider) Current() *Tables {
	return p.current.Load()
}

func (p *Provider) swap(t *Tables) {
	p.current.Store(t)
}
