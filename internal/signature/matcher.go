package signature

// Matcher performs multi-pattern header matching over a sliding byte
// window, adapted from a generic prefix-table filename matcher
// (ostafen-digler/pkg/table) by reusing its hash-folding scheme over raw
// header bytes instead of path components.
type Matcher struct {
	table *prefixTable[Signature]
	byID  map[string]Signature
	all   []Signature
}

// New builds a Matcher and a lookup-by-ID map over sigs.
func New(sigs []Signature) *Matcher {
	m := &Matcher{
		table: newPrefixTable[Signature](),
		byID:  make(map[string]Signature, len(sigs)),
		all:   sigs,
	}
	for _, s := range sigs {
		if len(s.Header) == 0 {
			continue
		}
		m.table.Insert(s.Header, s)
		m.byID[s.ID] = s
	}
	return m
}

// ByID returns the signature with the given ID.
func (m *Matcher) ByID(id string) (Signature, bool) {
	s, ok := m.byID[id]
	return s, ok
}

// All returns every registered signature.
func (m *Matcher) All() []Signature {
	return m.all
}

// MatchAt returns every signature whose header matches the start of
// window, shortest header first. Callers needing the Check-byte
// disambiguation (e.g. ZIP vs DOCX) should inspect the returned slice
// themselves with the bytes available after window.
func (m *Matcher) MatchAt(window []byte) []Signature {
	var hits []Signature
	m.table.Walk(window, func(s Signature) bool {
		hits = append(hits, s)
		return false
	})
	return hits
}

// BestMatchAt picks the most specific signature starting at window: among
// MatchAt's hits, one whose Check bytes are found within checkWindow
// (typically the next 1KB after the header) wins; otherwise the hit with
// the longest header wins, since a longer header is a stronger claim to
// identity than a short, generic one (e.g. DOCX's check over plain ZIP).
func (m *Matcher) BestMatchAt(window, checkWindow []byte) (Signature, bool) {
	hits := m.MatchAt(window)
	if len(hits) == 0 {
		return Signature{}, false
	}

	var best Signature
	found := false
	for _, s := range hits {
		if len(s.Check) > 0 && containsBytes(checkWindow, s.Check) {
			if !found || len(s.Header) > len(best.Header) {
				best = s
				found = true
			}
		}
	}
	if found {
		return best, true
	}

	best = hits[0]
	for _, s := range hits[1:] {
		if len(s.Header) > len(best.Header) {
			best = s
		}
	}
	return best, true
}

func containsBytes(haystack, needle []byte) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
