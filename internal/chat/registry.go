package chat

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// Registry holds the thread summaries in server order. IDs are unique.
type Registry struct {
	threads []ThreadSummary
}

// Replace swaps in a new listing, keeping the first occurrence of each id.
func (r *Registry) Replace(list []ThreadSummary) {
	seen := make(map[string]bool, len(list))
	out := make([]ThreadSummary, 0, len(list))
	for _, t := range list {
		if t.ID == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	r.threads = out
}

func (r *Registry) Threads() []ThreadSummary {
	return append([]ThreadSummary(nil), r.threads...)
}

func (r *Registry) Len() int {
	return len(r.threads)
}

func (r *Registry) Find(id string) (ThreadSummary, bool) {
	if i := r.index(id); i >= 0 {
		return r.threads[i], true
	}
	return ThreadSummary{}, false
}

// First returns the first listed thread id, or "".
func (r *Registry) First() string {
	if len(r.threads) == 0 {
		return ""
	}
	return r.threads[0].ID
}

func (r *Registry) Rename(id, title string) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	r.threads[i].Title = title
	return true
}

func (r *Registry) Remove(id string) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	r.threads = append(r.threads[:i], r.threads[i+1:]...)
	return true
}

func (r *Registry) index(id string) int {
	for i, t := range r.threads {
		if t.ID == id {
			return i
		}
	}
	return -1
}

type threadSource []ThreadSummary

func (s threadSource) String(i int) string {
	return s[i].Title + " " + s[i].Preview
}

func (s threadSource) Len() int {
	return len(s)
}

// Search ranks threads by fuzzy match of query against title and preview. An empty query
// returns every thread in listing order.
func (r *Registry) Search(query string) []ThreadSummary {
	query = strings.TrimSpace(query)
	if query == "" {
		return r.Threads()
	}
	matches := fuzzy.FindFrom(query, threadSource(r.threads))
	out := make([]ThreadSummary, 0, len(matches))
	for _, m := range matches {
		out = append(out, r.threads[m.Index])
	}
	return out
}
