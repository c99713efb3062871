package api

import (
	"net/http"

	"github.com/dailyrhapsody/diary/internal/feed"
)

// parsePaginationParams reads ?limit=&offset=&tag=. paged is false when none
// of them is present, in which case the caller serves the full collection.
func parsePaginationParams(r *http.Request) (q feed.PageQuery, paged bool) {
	query := r.URL.Query()
	for _, key := range []string{"limit", "offset", "tag"} {
		if query.Get(key) != "" {
			paged = true
		}
	}

	return feed.ParsePageQuery(query.Get("limit"), query.Get("offset"), query.Get("tag")), paged
}
