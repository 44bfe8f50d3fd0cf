// Package i18n localizes the strings the board renders itself. Messages
// returned by the activities API are shown as sent and never pass through here.
package i18n

import (
	"embed"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

//go:embed active.*.toml
var localeFS embed.FS

var localeFiles = []string{"active.en.toml", "active.fr.toml"}

// Translator is a thin wrapper around go-i18n's Bundle.
type Translator struct {
	bundle    *i18n.Bundle
	supported []language.Tag
	matcher   language.Matcher
	log       *zap.Logger
}

// NewTranslator loads the embedded message files. defaultLocale (e.g. "en")
// is used when a request's preferences match nothing we ship.
func NewTranslator(defaultLocale string, log *zap.Logger) *Translator {
	if log == nil {
		log = zap.NewNop()
	}
	tag, err := language.Parse(defaultLocale)
	if err != nil {
		log.Warn("i18n: invalid default locale, using English", zap.String("locale", defaultLocale), zap.Error(err))
		tag = language.English
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, file := range localeFiles {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			log.Error("i18n: failed to load message file", zap.String("file", file), zap.Error(err))
		}
	}

	// The matcher falls back to the first tag, so the default goes first.
	supported := []language.Tag{tag}
	for _, t := range bundle.LanguageTags() {
		if t != tag {
			supported = append(supported, t)
		}
	}

	return &Translator{
		bundle:    bundle,
		supported: supported,
		matcher:   language.NewMatcher(supported),
		log:       log,
	}
}

// For returns a Localizer for the best match of an Accept-Language value.
func (t *Translator) For(acceptLanguage string) *Localizer {
	chosen := t.supported[0]
	if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(tags) > 0 {
		if _, idx, conf := t.matcher.Match(tags...); conf != language.No {
			chosen = t.supported[idx]
		}
	}
	return &Localizer{
		localizer: i18n.NewLocalizer(t.bundle, chosen.String()),
		lang:      chosen,
		log:       t.log,
	}
}

// Localizer renders messages in one language.
type Localizer struct {
	localizer *i18n.Localizer
	lang      language.Tag
	log       *zap.Logger
}

// Language returns the BCP 47 tag the localizer renders in.
func (l *Localizer) Language() string {
	return l.lang.String()
}

// T renders the message identified by key. data fills template placeholders
// and may be nil. An unknown key renders as the key itself.
func (l *Localizer) T(key string, data map[string]any) string {
	if key == "" {
		return ""
	}
	msg, err := l.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		l.log.Warn("i18n: localize failed", zap.String("key", key), zap.Stringer("lang", l.lang), zap.Error(err))
		return key
	}
	return msg
}
