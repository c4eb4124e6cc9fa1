// Package i18n выбирает язык запроса и отдает message.Printer для сообщений
// валидации и HTML-панели. Каталоги регистрируются в messages.go.
package i18n

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// LangParam query-параметр выбора языка
	LangParam = "lang"
)

var (
	BrazilianPortuguese = language.MustParse("pt-BR")

	supportedTags = []language.Tag{BrazilianPortuguese, language.English}
	tagMatcher    = language.NewMatcher(supportedTags)
	defaultTag    = BrazilianPortuguese
)

type ctxKey struct{}

// SetDefault меняет язык по умолчанию (app.default_locale)
func SetDefault(locale string) {
	if tag, ok := ParseTag(locale); ok {
		defaultTag = tag
	}
}

func Default() language.Tag {
	return defaultTag
}

// ParseTag приводит произвольный тег к поддерживаемому
func ParseTag(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return language.Und, false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return language.Und, false
	}
	_, idx, confidence := tagMatcher.Match(tag)
	if confidence == language.No {
		return language.Und, false
	}
	return supportedTags[idx], true
}

// ResolveTag язык из ?lang=, затем Accept-Language, затем дефолт
func ResolveTag(r *http.Request) language.Tag {
	if r == nil {
		return Default()
	}
	if tag, ok := ParseTag(r.URL.Query().Get(LangParam)); ok {
		return tag
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			_, idx, confidence := tagMatcher.Match(tags...)
			if confidence != language.No {
				return supportedTags[idx]
			}
		}
	}
	return Default()
}

func WithTag(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, ctxKey{}, tag)
}

func TagFrom(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(ctxKey{}).(language.Tag); ok {
		return tag
	}
	return Default()
}

// Printer для языка запроса
func Printer(ctx context.Context) *message.Printer {
	return message.NewPrinter(TagFrom(ctx))
}

// Middleware определяет язык и кладет его в контекст
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := ResolveTag(r)
		w.Header().Set("Content-Language", tag.String())
		next.ServeHTTP(w, r.WithContext(WithTag(r.Context(), tag)))
	})
}
