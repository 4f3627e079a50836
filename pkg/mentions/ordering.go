package mentions

import "sort"

// AppearsEarlierThan reports whether m precedes o in document order: earlier
// sentence, then earlier start token, then the longer span of two that start
// together.
func (m *Mention) AppearsEarlierThan(o *Mention) bool {
	if o == nil {
		return true
	}
	if m.SentNum != o.SentNum {
		return m.SentNum < o.SentNum
	}
	if m.StartIndex != o.StartIndex {
		return m.StartIndex < o.StartIndex
	}
	return m.EndIndex > o.EndIndex
}

// MoreRepresentativeThan reports whether m is a better display mention than o.
//
// Proper beats everything, nominal beats pronominal. Between mentions of the same
// type the one with more pre-head modifiers wins, then the earlier sentence, the
// earlier head, the earlier start, and finally the lower mention ID. The relation
// is pairwise; callers must not assume it is transitive across types.
func (m *Mention) MoreRepresentativeThan(o *Mention) bool {
	if o == nil {
		return true
	}
	if m.Type != o.Type {
		return m.Type == MentionTypeProper ||
			(m.Type == MentionTypeNominal && o.Type == MentionTypePronominal)
	}

	if d1, d2 := m.HeadIndex-m.StartIndex, o.HeadIndex-o.StartIndex; d1 != d2 {
		return d1 > d2
	}
	if m.SentNum != o.SentNum {
		return m.SentNum < o.SentNum
	}
	if m.HeadIndex != o.HeadIndex {
		return m.HeadIndex < o.HeadIndex
	}
	if m.StartIndex != o.StartIndex {
		return m.StartIndex < o.StartIndex
	}
	return m.ID < o.ID
}

// SortedMentions returns a copy of ms in document order. Mentions that compare
// equal keep their input order.
func SortedMentions(ms []*Mention) []*Mention {
	sorted := make([]*Mention, len(ms))
	copy(sorted, ms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AppearsEarlierThan(sorted[j])
	})
	return sorted
}
