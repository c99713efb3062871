package feed

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/dailyrhapsody/diary/internal/diary"
)

const (
	DefaultPageSize = 30
	MaxPageSize     = 100
)

type (
	// PageQuery selects a page. Tag, when set, keeps only entries carrying
	// exactly that tag.
	PageQuery struct {
		Limit  int
		Offset int
		Tag    string
	}

	Page struct {
		Items   []diary.Entry `json:"items"`
		Total   int           `json:"total"`
		HasMore bool          `json:"hasMore"`

		// Only on the first page.
		*Aggregates
	}

	// Aggregates describe the unfiltered collection.
	Aggregates struct {
		TagCounts []TagCount `json:"tagCounts"`
		Dates     []string   `json:"dates"`
	}

	TagCount struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}
)

// ParsePageQuery reads string encoded parameters. A limit that is missing,
// malformed or zero becomes the default; the rest is clamped into range.
func ParsePageQuery(limit, offset, tag string) PageQuery {
	l, err := strconv.Atoi(limit)
	if err != nil || l == 0 {
		l = DefaultPageSize
	}
	o, err := strconv.Atoi(offset)
	if err != nil {
		o = 0
	}

	return PageQuery{Limit: l, Offset: o, Tag: tag}.normalized()
}

func (q PageQuery) normalized() PageQuery {
	q.Limit = min(max(q.Limit, 1), MaxPageSize)
	q.Offset = max(q.Offset, 0)
	return q
}

// paginate slices an already ordered collection.
func paginate(ordered []diary.Entry, q PageQuery) Page {
	filtered := ordered
	if q.Tag != "" {
		filtered = make([]diary.Entry, 0, len(ordered))
		for _, e := range ordered {
			if slices.Contains(e.Tags, q.Tag) {
				filtered = append(filtered, e)
			}
		}
	}

	var (
		total = len(filtered)
		start = min(q.Offset, total)
		end   = min(start+q.Limit, total)
	)

	p := Page{
		Items:   append([]diary.Entry{}, filtered[start:end]...),
		Total:   total,
		HasMore: q.Offset+(end-start) < total,
	}
	if q.Offset == 0 {
		p.Aggregates = &Aggregates{
			TagCounts: tagCounts(ordered),
			Dates:     distinctDates(ordered),
		}
	}

	return p
}

// tagCounts counts (entry, tag) memberships, most used first. Ties are
// broken by name so the output is stable.
func tagCounts(entries []diary.Entry) []TagCount {
	counts := make(map[string]int)
	for _, e := range entries {
		for _, t := range e.Tags {
			counts[t]++
		}
	}

	out := make([]TagCount, 0, len(counts))
	for name, value := range counts {
		out = append(out, TagCount{Name: name, Value: value})
	}
	slices.SortFunc(out, func(a, b TagCount) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	return out
}

// distinctDates lists each date once, in order of first appearance.
func distinctDates(entries []diary.Entry) []string {
	var (
		seen  = make(map[string]struct{}, len(entries))
		dates = make([]string, 0, len(entries))
	)
	for _, e := range entries {
		if _, ok := seen[e.Date]; ok {
			continue
		}
		seen[e.Date] = struct{}{}
		dates = append(dates, e.Date)
	}

	return dates
}
