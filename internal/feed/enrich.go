package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/dailyrhapsody/diary/internal/diary"
)

// enrichment is the outcome of asking the timestamp source. A failed
// enrichment applies as a no-op.
type enrichment struct {
	times map[int]time.Time
	err   error
}

func (s *Service) fetchTimes(ctx context.Context) enrichment {
	if s.source == nil {
		enrichmentTotal.WithLabelValues("disabled").Inc()
		return enrichment{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.enrichTimeout)
	defer cancel()

	times, err := s.source.PublishTimes(ctx)
	if err != nil {
		enrichmentTotal.WithLabelValues("failed").Inc()
		slog.WarnContext(ctx, "skipping publish time enrichment", "error", err)
		return enrichment{err: err}
	}
	enrichmentTotal.WithLabelValues("merged").Inc()

	return enrichment{times: times}
}

func (en enrichment) ok() bool {
	return en.err == nil && en.times != nil
}

// apply returns a copy of entries where every entry known to the source
// carries the source's publish time. The input is not modified.
func (en enrichment) apply(entries []diary.Entry) []diary.Entry {
	out := make([]diary.Entry, len(entries))
	copy(out, entries)
	if !en.ok() {
		return out
	}

	for i, e := range out {
		if t, found := en.times[e.ID]; found {
			out[i].PublishedAt = &t
		}
	}

	return out
}
