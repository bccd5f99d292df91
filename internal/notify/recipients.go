package notify

import "sort"

// RecipientSet is a deduplicated set of actor ids.
type RecipientSet struct {
	ids map[int64]struct{}
}

// NewRecipientSet seeds a set with ids.
func NewRecipientSet(ids ...int64) *RecipientSet {
	s := &RecipientSet{ids: make(map[int64]struct{}, len(ids))}
	s.Add(ids...)
	return s
}

// Add inserts ids, ignoring zero values.
func (s *RecipientSet) Add(ids ...int64) {
	if s.ids == nil {
		s.ids = make(map[int64]struct{}, len(ids))
	}
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		s.ids[id] = struct{}{}
	}
}

// Len reports the number of distinct recipients.
func (s *RecipientSet) Len() int {
	return len(s.ids)
}

// Has reports membership.
func (s *RecipientSet) Has(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

// IDs returns the members in ascending order.
func (s *RecipientSet) IDs() []int64 {
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
