package identity

import (
	_ "embed"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

//go:embed locales.json
var localesFile []byte

// Locale is one entry of the locale lookup table.
type Locale struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// LocaleCatalog is the read-mostly locale lookup table. It is built once,
// explicitly, at process startup; nothing initializes it lazily on first use.
type LocaleCatalog interface {
	Locales() []Locale
	Lookup(code string) (Locale, bool)
}

type localeCatalog struct {
	ordered []Locale
	byCode  map[string]Locale
}

// LoadLocales parses the embedded locale table. Call it from main before
// serving traffic.
func LoadLocales() (LocaleCatalog, error) {
	var locales []Locale
	if err := json.Unmarshal(localesFile, &locales); err != nil {
		return nil, err
	}
	sort.Slice(locales, func(i, j int) bool { return locales[i].Code < locales[j].Code })
	byCode := make(map[string]Locale, len(locales))
	for _, l := range locales {
		byCode[strings.ToLower(l.Code)] = l
	}
	return &localeCatalog{ordered: locales, byCode: byCode}, nil
}

func (c *localeCatalog) Locales() []Locale {
	out := make([]Locale, len(c.ordered))
	copy(out, c.ordered)
	return out
}

func (c *localeCatalog) Lookup(code string) (Locale, bool) {
	l, ok := c.byCode[strings.ToLower(code)]
	return l, ok
}
