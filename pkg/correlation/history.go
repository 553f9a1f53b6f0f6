package correlation

import (
	"sort"
	"time"
)

// DefaultWindow is the bucketing window for co-occurrence learning.
const DefaultWindow = time.Hour

// Update is one observed node update, as recorded by the ingestion path.
type Update struct {
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`
}

// LearnFromHistory buckets a time-ordered update log into fixed windows,
// computes Jaccard co-occurrence for every node pair that ever shares a
// window, and stores pairs whose score clears the storage threshold. This is
// the only path that mutates the matrix from observed behavior rather than
// explicit assignment.
func (m *Matrix) LearnFromHistory(updates []Update, window time.Duration) error {
	if len(updates) == 0 {
		return nil
	}
	if window <= 0 {
		window = DefaultWindow
	}

	origin := updates[0].Timestamp
	for _, u := range updates {
		if u.Timestamp.Before(origin) {
			origin = u.Timestamp
		}
	}

	// windows[node] = set of window indices the node was updated in
	windows := make(map[string]map[int64]struct{})
	for _, u := range updates {
		idx := int64(u.Timestamp.Sub(origin) / window)
		if windows[u.NodeID] == nil {
			windows[u.NodeID] = make(map[int64]struct{})
		}
		windows[u.NodeID][idx] = struct{}{}
	}

	ids := make([]string, 0, len(windows))
	for id := range windows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			score := jaccard(windows[ids[i]], windows[ids[j]])
			if score < m.storageThreshold {
				continue
			}
			if err := m.Set(ids[i], ids[j], score); err != nil {
				return err
			}
		}
	}
	return nil
}

func jaccard(a, b map[int64]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	intersection := 0
	for idx := range small {
		if _, ok := large[idx]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
