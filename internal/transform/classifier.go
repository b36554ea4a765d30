package transform

import (
	"strings"

	"github.com/ignite/campaign-tracker/internal/domain"
)

// Classify derives the registration type from the first page a visitor
// landed on and the last page (referrer) before registering.
//
// An exact first/last match with no landing page hit is Other, not Direct.
func Classify(firstPage, lastPage string, landingPages []string) domain.RegistrationType {
	firstMatch := containsAny(firstPage, landingPages)
	lastMatch := containsAny(lastPage, landingPages)

	switch {
	case firstPage == lastPage && firstMatch:
		return domain.RegDirect
	case firstMatch && !lastMatch:
		return domain.RegIndirect
	case lastMatch:
		return domain.RegDirect
	default:
		return domain.RegOther
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
