package branches

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// DefaultAliases maps login fragments onto branch name fragments that the
// login does not spell out.
var DefaultAliases = map[string]string{
	"hq":     "head office",
	"office": "head office",
	"wh":     "warehouse",
	"sklad":  "warehouse",
}

// minKeyword is the shortest name word used as a keyword. Shorter words
// ("a", "of") match almost any login.
const minKeyword = 3

// Inferrer guesses a branch from a login name for UI display. Its result
// must never be used to grant or restrict access.
type Inferrer struct {
	aliases map[string]string
}

// NewInferrer builds an Inferrer with the given alias table.
func NewInferrer(aliases map[string]string) *Inferrer {
	fold := cases.Fold()
	normalised := make(map[string]string, len(aliases))
	for k, v := range aliases {
		normalised[fold.String(k)] = fold.String(v)
	}
	return &Inferrer{aliases: normalised}
}

// InferFromUsername runs the default Inferrer.
func InferFromUsername(username string, candidates []Branch) (Branch, bool) {
	return NewInferrer(DefaultAliases).Infer(username, candidates)
}

// Keywords returns the folded keywords that identify b: its code, its full
// name and every name word of at least minKeyword letters.
func (i *Inferrer) Keywords(b Branch) []string {
	// Casers carry state and are not shared between goroutines.
	fold := cases.Fold()
	var out []string
	if b.Code != nil && len([]rune(strings.TrimSpace(*b.Code))) >= 2 {
		out = append(out, fold.String(strings.TrimSpace(*b.Code)))
	}
	name := fold.String(strings.TrimSpace(b.Name))
	if name == "" {
		return out
	}
	out = append(out, compact(name))
	for _, word := range strings.FieldsFunc(name, notAlnum) {
		if len([]rune(word)) >= minKeyword {
			out = append(out, word)
		}
	}
	return out
}

// Infer returns the branch whose longest keyword occurs in username. Ties go
// to the lowest branch id.
func (i *Inferrer) Infer(username string, candidates []Branch) (Branch, bool) {
	login := cases.Fold().String(strings.TrimSpace(username))
	if login == "" || len(candidates) == 0 {
		return Branch{}, false
	}
	tokens := strings.FieldsFunc(login, notAlnum)
	for _, tok := range tokens {
		if target, ok := i.aliases[tok]; ok {
			login += " " + target
		}
	}
	squashed := compact(login)

	sorted := append([]Branch(nil), candidates...)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].ID < sorted[b].ID })

	var best Branch
	bestLen := 0
	for _, b := range sorted {
		for _, kw := range i.Keywords(b) {
			if kw == "" {
				continue
			}
			if !strings.Contains(login, kw) && !strings.Contains(squashed, compact(kw)) {
				continue
			}
			if n := len([]rune(kw)); n > bestLen {
				best, bestLen = b, n
			}
		}
	}
	return best, bestLen > 0
}

func notAlnum(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func compact(s string) string {
	return strings.Map(func(r rune) rune {
		if notAlnum(r) {
			return -1
		}
		return r
	}, s)
}
