package domain

// Priority represents task priority level
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Category buckets tasks for filtering.
type Category string

const (
	CategoryWork     Category = "Work"
	CategoryPersonal Category = "Personal"
	CategoryStudy    Category = "Study"
	CategoryHealth   Category = "Health"
	CategoryFinance  Category = "Finance"
	CategoryOther    Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryWork, CategoryPersonal, CategoryStudy,
	CategoryHealth, CategoryFinance, CategoryOther,
}

// SubTask is owned by its parent task and only ever replaced as part of the
// whole subTasks sequence.
type SubTask struct {
	ID        string `json:"id" firestore:"id"`
	Title     string `json:"title" firestore:"title"`
	Completed bool   `json:"completed" firestore:"completed"`
}

// Task is a to-do item owned by exactly one identity. CreatedAt is assigned
// by the client at creation time in unix milliseconds and is the sole sort
// key; the store delivers snapshots ordered by it descending.
type Task struct {
	ID          string    `json:"id" firestore:"-"`
	OwnerID     string    `json:"user_id" firestore:"userId"`
	Title       string    `json:"title" firestore:"title"`
	Description string    `json:"description,omitempty" firestore:"description"`
	Completed   bool      `json:"completed" firestore:"completed"`
	Priority    Priority  `json:"priority" firestore:"priority"`
	Category    Category  `json:"category" firestore:"category"`
	CreatedAt   int64     `json:"created_at" firestore:"createdAt"`
	SubTasks    []SubTask `json:"sub_tasks" firestore:"subTasks"`
}

// Stats are the dashboard aggregates derived from the full task set.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Progress  int `json:"progress"` // 0..100, rounded
}

// ParsePriority normalizes a priority string, defaulting to medium.
func ParsePriority(p string) Priority {
	switch p {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// ParseCategory normalizes a category string, defaulting to Other.
func ParseCategory(c string) Category {
	for _, known := range Categories {
		if c == string(known) {
			return known
		}
	}
	return CategoryOther
}
