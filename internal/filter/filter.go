package filter

import "strings"

// Filter is one predicate instance: a closed-set Kind plus the
// negative/conjunct/values wire parameters of spec.md section 4.7.
type Filter struct {
	Kind     Kind
	Negative bool
	Conjunct bool
	Values   []string
}

func (f Filter) NeedsBody() bool {
	return f.Kind.NeedsBody()
}

// Apply evaluates f against el, returning the predicate's verdict (already
// accounting for Negative). When el doesn't carry this Kind's dimension,
// the filter is vacuously satisfied so a pipeline mixing event and message
// elements doesn't reject one kind's element for lacking another's field.
func (f Filter) Apply(el Element) bool {
	matched, applicable := f.rawMatch(el)
	if !applicable {
		return true
	}
	if f.Negative {
		return !matched
	}
	return matched
}

func (f Filter) rawMatch(el Element) (matched bool, applicable bool) {
	switch f.Kind {
	case KindEventText:
		text, ok := el.EventText()
		if !ok {
			return false, false
		}
		return matchSubstring(text, f.Values, f.Conjunct), true

	case KindMessageType:
		mt, ok := el.MessageType()
		if !ok {
			return false, false
		}
		return matchMembership([]string{mt}, f.Values, f.Conjunct), true

	case KindMessageBodyText:
		body, ok := el.MessageBodyText()()
		if !ok {
			return false, false
		}
		return matchSubstring(body, f.Values, f.Conjunct), true

	case KindMessageBodyBinary:
		body, ok := el.MessageBodyBinary()()
		if !ok {
			return false, false
		}
		return matchBinarySubstring(body, f.Values, f.Conjunct), true

	case KindAttachedMessageId:
		ids, ok := el.AttachedMessageIds()
		if !ok {
			return false, false
		}
		return matchMembership(ids, f.Values, f.Conjunct), true

	case KindAttachedEventId:
		ids, ok := el.AttachedEventIds()
		if !ok {
			return false, false
		}
		return matchMembership(ids, f.Values, f.Conjunct), true

	case KindAttachedEventIds:
		ids, ok := el.AttachedEventIds()
		if !ok {
			return false, false
		}
		return matchAllMembership(ids, f.Values, f.Conjunct), true

	case KindParentEvent:
		parent, ok := el.ParentEventId()
		if !ok {
			return false, false
		}
		return matchMembership([]string{parent}, f.Values, f.Conjunct), true
	}
	return false, false
}

// matchSubstring implements conjunct (all substrings present) vs disjunct
// (any substring present) text matching. An empty value list is vacuously
// true.
func matchSubstring(s string, values []string, conjunct bool) bool {
	if len(values) == 0 {
		return true
	}
	if conjunct {
		for _, v := range values {
			if !strings.Contains(s, v) {
				return false
			}
		}
		return true
	}
	for _, v := range values {
		if strings.Contains(s, v) {
			return true
		}
	}
	return false
}

func matchBinarySubstring(body []byte, values []string, conjunct bool) bool {
	s := string(body)
	return matchSubstring(s, values, conjunct)
}

// matchMembership tests whether items intersects values: conjunct requires
// every value present, disjunct requires any value present.
func matchMembership(items []string, values []string, conjunct bool) bool {
	if len(values) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	if conjunct {
		for _, v := range values {
			if _, ok := set[v]; !ok {
				return false
			}
		}
		return true
	}
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

// matchAllMembership is the attached-event-ids variant: conjunct requires
// items to contain every value (a superset check), disjunct falls back to
// ordinary any-of membership.
func matchAllMembership(items []string, values []string, conjunct bool) bool {
	if !conjunct {
		return matchMembership(items, values, false)
	}
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	for _, v := range values {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}
