package grammar

// Match describes where a rule matched. Offsets are absolute in the source.
type Match struct {
	Rule   *Rule
	Start  int
	End    int
	source string
	// groups holds start/end pairs of the rule's own capture groups.
	groups []int
}

// Text returns the matched text.
func (m Match) Text() string {
	return m.source[m.Start:m.End]
}

// Group returns the text of the rule's n-th capture group (1-based), or "" if it did not participate.
func (m Match) Group(n int) string {
	start, end := m.GroupIndex(n)
	if start < 0 {
		return ""
	}
	return m.source[start:end]
}

// GroupIndex returns the absolute offsets of the n-th capture group, or -1, -1.
func (m Match) GroupIndex(n int) (int, int) {
	i := (n - 1) * 2
	if n < 1 || i+1 >= len(m.groups) {
		return -1, -1
	}
	return m.groups[i], m.groups[i+1]
}

// Matcher finds the nearest rule match of one class.
// Within a parse pass positions only move forward, so the last result is
// reused while the requested position has not passed it. A search from
// mid-line can match ^ at the cursor, so it is only answered from the last
// result when it starts where that search started or at a line start.
type Matcher struct {
	c *composite

	valid  bool
	source string
	from   int
	found  bool
	last   Match
}

// Find returns the nearest match starting at or after from.
func (m *Matcher) Find(source string, from int) (Match, bool) {
	if m.c == nil || m.c.re == nil || from > len(source) {
		return Match{}, false
	}
	if m.valid && from >= m.from && m.source == source && (from == m.from || source[from-1] == '\n') {
		if !m.found {
			return Match{}, false
		}
		if from <= m.last.Start {
			return m.last, true
		}
	}

	m.valid, m.source, m.from = true, source, from
	loc := m.c.re.FindStringSubmatchIndex(source[from:])
	if loc == nil {
		m.found = false
		return Match{}, false
	}

	for i, g := range m.c.groups {
		if loc[2*g] < 0 {
			continue
		}
		match := Match{
			Rule:   &m.c.rules[i],
			Start:  from + loc[2*g],
			End:    from + loc[2*g+1],
			source: source,
		}
		for k := 1; k <= m.c.widths[i]; k++ {
			s, e := loc[2*(g+k)], loc[2*(g+k)+1]
			if s >= 0 {
				s, e = s+from, e+from
			}
			match.groups = append(match.groups, s, e)
		}
		m.found, m.last = true, match
		return match, true
	}
	m.found = false
	return Match{}, false
}
