package zone

import "strings"

// Filter decides which subzones are crawled. Entries are exact ids or
// "prefix*" patterns; matching is case-insensitive.
type Filter struct {
	exact    map[string]struct{}
	prefixes []string
	testMode bool
	sample   string
}

// NewFilter builds a Filter. In test mode every region other than sample is skipped.
func NewFilter(denied []string, testMode bool, sample string) *Filter {
	f := &Filter{
		exact:    make(map[string]struct{}),
		testMode: testMode,
		sample:   strings.ToLower(strings.TrimSpace(sample)),
	}
	for _, raw := range denied {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(value, "*"); ok {
			if prefix != "" {
				f.addPrefix(prefix)
			}
			continue
		}
		f.exact[value] = struct{}{}
	}
	return f
}

func (f *Filter) addPrefix(prefix string) {
	for _, existing := range f.prefixes {
		if existing == prefix {
			return
		}
	}
	f.prefixes = append(f.prefixes, prefix)
}

// Allow reports whether the subzone id should be crawled. A nil Filter allows everything.
func (f *Filter) Allow(id string) bool {
	if f == nil {
		return true
	}
	id = strings.TrimSpace(strings.ToLower(id))
	if _, denied := f.exact[id]; denied {
		return false
	}
	for _, prefix := range f.prefixes {
		if strings.HasPrefix(id, prefix) {
			return false
		}
	}
	if f.testMode && strings.HasPrefix(id, "regin") && id != f.sample {
		return false
	}
	return true
}
