package app

import (
	"math"
	"strings"

	"github.com/nayhtooyan/collabtask/internal/task/domain"
)

// CategoryAll is the filter value that matches every category.
const CategoryAll = "All"

// FilterTasks returns the tasks visible under the given category filter and
// search text. Pure: no side effects, store order preserved, never re-sorted.
func FilterTasks(tasks []domain.Task, category, query string) []domain.Task {
	q := strings.ToLower(query)
	visible := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if category != CategoryAll && string(t.Category) != category {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(t.Title), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			continue
		}
		visible = append(visible, t)
	}
	return visible
}

// ComputeStats derives the dashboard aggregates from the full task set.
func ComputeStats(tasks []domain.Task) domain.Stats {
	stats := domain.Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			stats.Completed++
		}
	}
	if stats.Total > 0 {
		stats.Progress = int(math.Round(float64(stats.Completed) / float64(stats.Total) * 100))
	}
	return stats
}
