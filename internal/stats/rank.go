package stats

import "sort"

// RankEntry is one row of a top-N ranking: an opaque label and its
// cumulative count.
type RankEntry struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// TopCategories returns up to limit categories ordered by count descending.
// Ties are broken by first-insertion order, so the output is deterministic
// across runs regardless of map iteration order.
func (c *Collector) TopCategories(limit int) []RankEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topCategoriesLocked(limit)
}

func (c *Collector) topCategoriesLocked(limit int) []RankEntry {
	if limit <= 0 || len(c.categories) == 0 {
		return nil
	}
	type row struct {
		label string
		entry *categoryEntry
	}
	rows := make([]row, 0, len(c.categories))
	for label, entry := range c.categories {
		rows = append(rows, row{label: label, entry: entry})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].entry.count == rows[j].entry.count {
			return rows[i].entry.seq < rows[j].entry.seq
		}
		return rows[i].entry.count > rows[j].entry.count
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]RankEntry, len(rows))
	for i, r := range rows {
		out[i] = RankEntry{Label: r.label, Count: r.entry.count}
	}
	return out
}

// TopIdentities returns up to limit identities ordered by request count
// descending. Ties are broken by first-seen time ascending (the identity
// seen earlier ranks higher), then by identity for stability.
func (c *Collector) TopIdentities(limit int) []RankEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topIdentitiesLocked(limit)
}

func (c *Collector) topIdentitiesLocked(limit int) []RankEntry {
	if limit <= 0 || len(c.identities) == 0 {
		return nil
	}
	type row struct {
		identity string
		entry    *identityEntry
	}
	rows := make([]row, 0, len(c.identities))
	for identity, entry := range c.identities {
		rows = append(rows, row{identity: identity, entry: entry})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].entry.count == rows[j].entry.count {
			if rows[i].entry.firstSeen.Equal(rows[j].entry.firstSeen) {
				return rows[i].identity < rows[j].identity
			}
			return rows[i].entry.firstSeen.Before(rows[j].entry.firstSeen)
		}
		return rows[i].entry.count > rows[j].entry.count
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]RankEntry, len(rows))
	for i, r := range rows {
		out[i] = RankEntry{Label: r.identity, Count: r.entry.count}
	}
	return out
}
