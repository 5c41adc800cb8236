package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed locales/*.json
var localesFS embed.FS

// Supported languages; DefaultLanguage is the fallback for missing keys.
const (
	DefaultLanguage = "en"
	Vietnamese      = "vi"
)

// Localizer handles translation for different languages.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// NewLocalizer creates a new Localizer instance and loads all translations.
func NewLocalizer() (*Localizer, error) {
	locale := &Localizer{
		translations: make(map[string]map[string]string),
	}

	for _, lang := range []string{DefaultLanguage, Vietnamese} {
		if err := locale.loadLanguage(lang); err != nil {
			return nil, fmt.Errorf("failed to load language %s: %w", lang, err)
		}
	}

	return locale, nil
}

func (l *Localizer) loadLanguage(lang string) error {
	filename := fmt.Sprintf("locales/%s.json", lang)
	data, err := localesFS.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read locale file %s: %w", filename, err)
	}

	var translations map[string]string
	if err = json.Unmarshal(data, &translations); err != nil {
		return fmt.Errorf("failed to unmarshal locale file %s: %w", filename, err)
	}

	l.mu.Lock()
	l.translations[lang] = translations
	l.mu.Unlock()

	return nil
}

// Get returns the translation for the given key in the specified language.
// Missing keys fall back to English, then to the key itself.
func (l *Localizer) Get(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if translation, ok := l.translations[lang][key]; ok {
		return translation
	}
	if translation, ok := l.translations[DefaultLanguage][key]; ok {
		return translation
	}
	return key
}

// GetWithData returns the translation with {placeholder} values replaced.
// Example: GetWithData("en", "validation.required", map[string]any{"fields": "roomId"}).
func (l *Localizer) GetWithData(lang, key string, data map[string]any) string {
	translation := l.Get(lang, key)
	for k, v := range data {
		translation = strings.ReplaceAll(translation, "{"+k+"}", fmt.Sprint(v))
	}
	return translation
}

// NormalizeLanguageCode maps an Accept-Language value such as "vi-VN,vi;q=0.9" to a
// supported language.
func NormalizeLanguageCode(acceptLanguage string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(acceptLanguage), ",")
	first, _, _ = strings.Cut(first, ";")
	code, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(first)), "-")

	switch code {
	case Vietnamese:
		return Vietnamese
	default:
		return DefaultLanguage
	}
}
