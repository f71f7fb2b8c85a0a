package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Sternrassler/batch-fetch/pkg/fetch"
)

// ErrInvalidCode is returned for a code token that is neither A..Z nor AA..ZZ.
var ErrInvalidCode = errors.New("each code must be A to Z or AA to ZZ")

// POP20 are the codes of the 20 most populous countries, used when no codes
// are given.
var POP20 = []string{
	"CN", "IN", "US", "ID", "BR", "PK", "NG", "BD", "RU", "JP",
	"MX", "PH", "VN", "ET", "EG", "DE", "IR", "TR", "CD", "FR",
}

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ExpandCodes turns code tokens into a sorted, de-duplicated list of at most
// limit two-letter codes. A single letter X stands for XA..XZ; every selects
// AA..ZZ and ignores tokens. Tokens may be separated by commas or spaces.
func ExpandCodes(tokens []string, every bool, limit int) ([]string, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be >= 1 (got %d)", limit)
	}

	set := make(map[string]struct{})
	if every {
		for _, a := range letters {
			for _, b := range letters {
				set[string(a)+string(b)] = struct{}{}
			}
		}
	} else {
		for _, cc := range splitTokens(tokens) {
			cc = strings.ToUpper(cc)
			switch {
			case len(cc) == 1 && isLetter(cc[0]):
				for _, b := range letters {
					set[cc+string(b)] = struct{}{}
				}
			case len(cc) == 2 && isLetter(cc[0]) && isLetter(cc[1]):
				set[cc] = struct{}{}
			default:
				return nil, fmt.Errorf("%w (got %q)", ErrInvalidCode, cc)
			}
		}
	}

	codes := make([]string, 0, len(set))
	for cc := range set {
		codes = append(codes, cc)
	}
	sort.Strings(codes)

	if len(codes) > limit {
		codes = codes[:limit]
	}
	return codes, nil
}

// ToIdentifiers converts codes to pipeline identifiers.
func ToIdentifiers(codes []string) []fetch.Identifier {
	ids := make([]fetch.Identifier, len(codes))
	for i, cc := range codes {
		ids[i] = fetch.Identifier(cc)
	}
	return ids
}

func splitTokens(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		out = append(out, strings.FieldsFunc(t, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})...)
	}
	return out
}

func isLetter(c byte) bool {
	return c >= 'A' && c <= 'Z'
}
