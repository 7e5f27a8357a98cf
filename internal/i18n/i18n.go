// Package i18n localizes API error messages and CLI summaries.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

// Catalog holds the parsed locale files and the fallback language.
type Catalog struct {
	bundle   *i18n.Bundle
	fallback string
}

// Load parses every embedded locale file with lang as the default language.
func Load(lang string) (*Catalog, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", lang, err)
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		slog.Debug("loaded locale file", "file", e.Name())
	}
	return &Catalog{bundle: bundle, fallback: tag.String()}, nil
}

// Localizer prefers the given languages, in order, then the fallback.
// Entries may be Accept-Language header values.
func (c *Catalog) Localizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(c.bundle, append(langs, c.fallback)...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func localizerFromCtx(ctx context.Context) (*i18n.Localizer, bool) {
	loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer)
	return loc, ok
}

// T translates a message by ID with optional template data. It returns the
// ID itself when the context carries no localizer or the message is missing.
func T(ctx context.Context, msgID string, data map[string]any) string {
	loc, ok := localizerFromCtx(ctx)
	if !ok {
		return msgID
	}
	s, err := loc.Localize(&i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// Tp translates a pluralized message by ID.
func Tp(ctx context.Context, msgID string, count int) string {
	loc, ok := localizerFromCtx(ctx)
	if !ok {
		return msgID
	}
	s, err := loc.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}
