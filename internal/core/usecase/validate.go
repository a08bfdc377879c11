package usecase

import (
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/lore-assistant/internal/core/domain"
)

const DefaultMinPageLength = 25

// Service namespaces of the wiki. Pages under them carry no lore.
var serviceNamespaces = []string{
	"категория:",
	"файл:",
	"обсуждение:",
	"шаблон:",
	"участник:",
	"category:",
	"file:",
	"talk:",
	"template:",
	"user:",
}

var redirectMarkers = []string{
	"перенаправление",
	"redirect",
}

// ValidatePage reports whether a page is worth indexing and, if not, why.
func ValidatePage(page domain.Page, minLength int) (domain.SkipReason, bool) {
	if minLength <= 0 {
		minLength = DefaultMinPageLength
	}
	title := strings.ToLower(strings.TrimSpace(page.Title))
	text := strings.ToLower(strings.TrimSpace(page.Text))

	if title == "" || text == "" {
		return domain.SkipMissingFields, false
	}
	for _, prefix := range serviceNamespaces {
		if strings.HasPrefix(title, prefix) {
			return domain.SkipNamespace, false
		}
	}
	if utf8.RuneCountInString(text) < minLength {
		return domain.SkipTooShort, false
	}
	for _, marker := range redirectMarkers {
		if strings.Contains(text, marker) {
			return domain.SkipRedirect, false
		}
	}
	return "", true
}
