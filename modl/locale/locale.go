// Package locale templates the player-facing text of the enforcement
// client. Messages ship with built-in English defaults; a server can
// override them with key=value .lang files.
package locale

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sandertv/gophertunnel/minecraft/text"
	"golang.org/x/text/language"
)

// localeData represents a mapping of translation keys to their respective
// values for a specific language.
type localeData map[string]string

var locales = make(map[language.Tag]localeData)

// fallback holds the built-in English messages used when no .lang file
// overrides them. Placeholders are positional: %1, %2, ...
var fallback = localeData{
	"punishment.banned":    "<red>You are banned. Reason: %1. Expires: %2</red>",
	"punishment.muted":     "<red>You have been muted. Reason: %1</red>",
	"punishment.kicked":    "<red>You have been kicked. Reason: %1</red>",
	"punishment.pardoned":  "<green>Your punishment has been pardoned.</green>",
	"punishment.no.reason": "No reason provided",
	"login.denied.banned":  "<red>You are banned. Reason: %1. Expires: %2</red>",
	"login.denied.error":   "<yellow>Unable to verify your account right now. Please try again shortly.</yellow>",
	"chat.muted":           "<red>You cannot chat while muted.</red>",
}

// Register loads a locale override file for the given language tag. The
// file format is key=value, one entry per line, # for comments.
func Register(lang language.Tag, filePath string) error {
	file, err := os.Open(fmt.Sprintf("%s/%s.lang", filePath, lang.String()))
	if err != nil {
		return fmt.Errorf("could not open lang file: %w", err)
	}
	defer file.Close()

	data := make(localeData)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) < 2 {
			continue
		}
		data[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if err = scanner.Err(); err != nil {
		return fmt.Errorf("error reading lang file: %w", err)
	}

	locales[lang] = data
	return nil
}

// Translate resolves a key to English, formats its placeholders and applies
// colour codes. The resolved message is passed as an argument rather than a
// format string, so % characters in translations or substituted values
// survive untouched.
func Translate(key string, args ...any) string {
	return text.Colourf("%s", TranslateL(language.English, key, args...))
}

// TranslateL resolves a key for a specific language, falling back to the
// built-in English messages when the language or key is missing.
func TranslateL(lang language.Tag, key string, args ...any) string {
	translation, ok := "", false
	if locale, exists := locales[lang]; exists {
		translation, ok = locale[key]
	}
	if !ok {
		if translation, ok = fallback[key]; !ok {
			return fmt.Sprintf("missing translation for '%s'", key)
		}
	}

	for i, arg := range args {
		placeholder := fmt.Sprintf("%%%d", i+1)
		translation = strings.ReplaceAll(translation, placeholder, fmt.Sprintf("%v", arg))
	}
	return translation
}
