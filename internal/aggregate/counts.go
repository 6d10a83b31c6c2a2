package aggregate

import "sort"

// Count is one category and its frequency.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Share is a Count with its percentage of a stated denominator.
type Share struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// counter tallies labels remembering first-seen order.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

// add ignores empty labels; they are missing values.
func (c *counter) add(label string) {
	if label == "" {
		return
	}
	if _, ok := c.counts[label]; !ok {
		c.order = append(c.order, label)
	}
	c.counts[label]++
}

// sorted returns counts descending; equal counts keep first-seen order.
func (c *counter) sorted() []Count {
	out := make([]Count, len(c.order))
	for i, l := range c.order {
		out[i] = Count{Label: l, Count: c.counts[l]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// inOrder returns counts for the given labels in that order, zeros included.
func (c *counter) inOrder(labels []string) []Count {
	out := make([]Count, len(labels))
	for i, l := range labels {
		out[i] = Count{Label: l, Count: c.counts[l]}
	}
	return out
}

// ValueCounts counts non-empty labels, most frequent first.
func ValueCounts(labels []string) []Count {
	c := newCounter()
	for _, l := range labels {
		c.add(l)
	}
	return c.sorted()
}

func top(counts []Count, n int) []Count {
	if len(counts) > n {
		return counts[:n]
	}
	return counts
}

func shares(counts []Count, denom int) []Share {
	out := make([]Share, len(counts))
	for i, c := range counts {
		out[i] = Share{Label: c.Label, Count: c.Count, Percent: percent(c.Count, denom)}
	}
	return out
}

func firstLabel(counts []Count) string {
	if len(counts) == 0 {
		return ""
	}
	return counts[0].Label
}
