package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/nayhtooyan/collabtask/internal/task/domain"
)

// ExportText serializes tasks into a flat human-readable report, one block
// per task: a checkbox line followed by the description.
func ExportText(tasks []domain.Task) string {
	blocks := make([]string, 0, len(tasks))
	for _, t := range tasks {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		blocks = append(blocks, fmt.Sprintf("[%s] %s (%s) - %s\n%s", mark, t.Title, t.Priority, t.Category, t.Description))
	}
	return strings.Join(blocks, "\n\n")
}

// ExportTasks writes the current task set as a text report to path.
func (c *Controller) ExportTasks(path string) error {
	c.mu.Lock()
	tasks := make([]domain.Task, len(c.tasks))
	copy(tasks, c.tasks)
	c.mu.Unlock()
	return os.WriteFile(path, []byte(ExportText(tasks)), 0o644)
}
