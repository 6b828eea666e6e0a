package keyword

// Set of folded tokens, for fast exact matching.
type Set map[string]bool

func NewSet(words []string) Set {
	s := make(Set, len(words))
	for _, w := range words {
		f := Fold(w)
		if f != "" {
			s[f] = true
		}
	}
	return s
}

// Returns the first token (in input order) which is a member of the set.
func (s Set) FirstMatch(tokens []string) (string, bool) {
	for _, tok := range tokens {
		if s[tok] {
			return tok, true
		}
	}
	return "", false
}

func (s Set) Contains(tok string) bool {
	return s[tok]
}
