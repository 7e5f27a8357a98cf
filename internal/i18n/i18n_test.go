package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func loadCatalog(t *testing.T, lang string) *Catalog {
	t.Helper()
	c, err := Load(lang)
	if err != nil {
		t.Fatalf("Load(%q): %v", lang, err)
	}
	return c
}

func ctxFor(t *testing.T, lang string) context.Context {
	t.Helper()
	return WithLocalizer(context.Background(), loadCatalog(t, "en").Localizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := ctxFor(t, "en")

	if got := T(ctx, "ErrNotFound", nil); got != "Not found." {
		t.Errorf("T(ErrNotFound) = %q, want 'Not found.'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := ctxFor(t, "ru")

	if got := T(ctx, "ErrNotFound", nil); got != "Не найдено." {
		t.Errorf("T(ErrNotFound) = %q, want 'Не найдено.'", got)
	}
}

func TestUnknownLanguageFallsBack(t *testing.T) {
	ctx := ctxFor(t, "fr-FR")

	if got := T(ctx, "ErrNotFound", nil); got != "Not found." {
		t.Errorf("T(ErrNotFound) = %q, want English fallback", got)
	}
}

func TestTemplateData(t *testing.T) {
	ctx := ctxFor(t, "en")

	got := T(ctx, "ErrRetakeTooSoon", map[string]any{"EarliestEligible": "2026-07-02T08:00:00Z"})
	want := "The retake cooldown has not elapsed. Try again after 2026-07-02T08:00:00Z."
	if got != want {
		t.Errorf("T(ErrRetakeTooSoon) = %q, want %q", got, want)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := ctxFor(t, "en")

	if got := Tp(ctx, "BatchSummary", 1); got != "Generated 1 exam." {
		t.Errorf("Tp(BatchSummary, 1) = %q", got)
	}
	if got := Tp(ctx, "BatchSummary", 5); got != "Generated 5 exams." {
		t.Errorf("Tp(BatchSummary, 5) = %q", got)
	}

	ru := ctxFor(t, "ru")
	if got := Tp(ru, "BatchSummary", 3); got != "Сгенерировано 3 экзамена." {
		t.Errorf("Tp(BatchSummary, 3) ru = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := ctxFor(t, "en")

	if got := T(ctx, "NonExistentKey", nil); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
	if got := T(context.Background(), "ErrNotFound", nil); got != "ErrNotFound" {
		t.Errorf("T without localizer = %q, want message ID", got)
	}
}

func TestMiddlewareAcceptLanguage(t *testing.T) {
	c := loadCatalog(t, "en")
	var got string
	h := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ErrMaintenance", nil)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.5")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != "Сервис на обслуживании. Повторите позже." {
		t.Errorf("localized message = %q", got)
	}
}
