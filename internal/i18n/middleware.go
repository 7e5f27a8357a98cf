package i18n

import "net/http"

// Middleware injects a localizer chosen from the Accept-Language header
// into every request context.
func (c *Catalog) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loc := c.Localizer(r.Header.Get("Accept-Language"))
		next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
	})
}
