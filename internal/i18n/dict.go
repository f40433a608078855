// Package i18n provides the display strings of the client, keyed by
// dictionary key, for each supported language.
package i18n

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed dictionaries/*.yaml
var dictionaryFS embed.FS

// DefaultLang is used when a requested language has no dictionary.
const DefaultLang = "en"

// Dict maps dictionary keys to display strings.
type Dict struct {
	lang    string
	entries map[string]string
	parent  *Dict
}

// Load returns the dictionary for lang, falling back to English for
// unknown languages and for keys missing from lang.
func Load(lang string) (*Dict, error) {
	base, err := parse(DefaultLang)
	if err != nil {
		return nil, err
	}
	lang = normalize(lang)
	if lang == DefaultLang {
		return base, nil
	}
	d, err := parse(lang)
	if err != nil {
		return base, nil
	}
	d.parent = base
	return d, nil
}

// MustLoad is Load that panics on a broken embedded dictionary.
func MustLoad(lang string) *Dict {
	d, err := Load(lang)
	if err != nil {
		panic(err)
	}
	return d
}

// Languages lists the available dictionary languages.
func Languages() []string {
	entries, err := dictionaryFS.ReadDir("dictionaries")
	if err != nil {
		return []string{DefaultLang}
	}
	langs := make([]string, 0, len(entries))
	for _, e := range entries {
		langs = append(langs, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(langs)
	return langs
}

// Lang returns the language of d.
func (d *Dict) Lang() string {
	return d.lang
}

// T returns the string for key. Missing keys render as the key itself.
func (d *Dict) T(key string) string {
	for cur := d; cur != nil; cur = cur.parent {
		if v, ok := cur.entries[key]; ok {
			return v
		}
	}
	return key
}

// Has reports whether key is defined in d or its fallback.
func (d *Dict) Has(key string) bool {
	for cur := d; cur != nil; cur = cur.parent {
		if _, ok := cur.entries[key]; ok {
			return true
		}
	}
	return false
}

func parse(lang string) (*Dict, error) {
	data, err := dictionaryFS.ReadFile("dictionaries/" + lang + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("dictionary %q not found: %w", lang, err)
	}
	entries := make(map[string]string)
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing dictionary %q: %w", lang, err)
	}
	return &Dict{lang: lang, entries: entries}, nil
}

// normalize maps values like "de_DE.UTF-8" or "zh-CN" to "de" / "zh".
func normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_."); i > 0 {
		lang = lang[:i]
	}
	if lang == "" {
		return DefaultLang
	}
	return lang
}
