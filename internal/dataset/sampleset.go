package dataset

// KeyPoints returns the distinct topic/key point texts in first-seen order.
func (s *SampleSet) KeyPoints() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(kp string) {
		if _, ok := seen[kp]; ok {
			return
		}
		seen[kp] = struct{}{}
		out = append(out, kp)
	}
	if s.Mode == ModeRecord {
		for _, r := range s.Records {
			add(r.TopicKeyPoint)
		}
		return out
	}
	for _, e := range s.Examples {
		add(e.Texts[0])
	}
	return out
}

// Texts returns every distinct text of the set, key points before arguments
// within a row, in first-seen order.
func (s *SampleSet) Texts() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(texts ...string) {
		for _, t := range texts {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	if s.Mode == ModeRecord {
		for _, r := range s.Records {
			add(r.TopicKeyPoint, r.Argument)
		}
		return out
	}
	for _, e := range s.Examples {
		add(e.Texts[0], e.Texts[1])
	}
	return out
}
