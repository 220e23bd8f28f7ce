package utils

import (
	"strings"

	"github.com/bookstore/orderservice/internal/core/domain"
)

var isbnSeparators = strings.NewReplacer("-", "", " ", "")

// CanonicalISBN is the catalog key for isbn: separators removed, upper case.
// Unlike NormalizeISBN it accepts keys of any shape.
func CanonicalISBN(isbn string) string {
	return strings.ToUpper(isbnSeparators.Replace(isbn))
}

// NormalizeISBN strips hyphens and spaces and checks the result is a 10 or 13 digit ISBN.
// An ISBN-10 may end with an X check digit.
func NormalizeISBN(isbn string) (string, error) {
	clean := CanonicalISBN(isbn)
	if len(clean) != 10 && len(clean) != 13 {
		return "", domain.ErrBadISBN
	}
	for i, r := range clean {
		if r == 'X' && len(clean) == 10 && i == len(clean)-1 {
			continue
		}
		if r < '0' || r > '9' {
			return "", domain.ErrBadISBN
		}
	}
	return clean, nil
}
