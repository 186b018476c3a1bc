package Views

import (
	"sort"

	"Workdesk/Models"
)

func sortNewestFirst(tasks []Models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}

// ActiveTasks is the admin work queue: everything not yet approved, newest first.
func ActiveTasks(tasks []Models.Task) []Models.Task {
	return TasksByStatus(tasks, Models.TaskPending, Models.TaskSubmitted, Models.TaskRevision)
}

// AssigneeQueue is uid's outstanding work, newest first.
func AssigneeQueue(tasks []Models.Task, uid string) []Models.Task {
	out := []Models.Task{}
	for _, t := range tasks {
		if t.AssigneeID == uid && t.Open() {
			out = append(out, t)
		}
	}
	sortNewestFirst(out)
	return out
}

// TasksByStatus keeps tasks whose status is in statuses, newest first.
func TasksByStatus(tasks []Models.Task, statuses ...Models.TaskStatus) []Models.Task {
	want := make(map[Models.TaskStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := []Models.Task{}
	for _, t := range tasks {
		if want[t.Status] {
			out = append(out, t)
		}
	}
	sortNewestFirst(out)
	return out
}

func TaskStatusCounts(tasks []Models.Task) map[Models.TaskStatus]int {
	counts := map[Models.TaskStatus]int{
		Models.TaskPending:   0,
		Models.TaskSubmitted: 0,
		Models.TaskRevision:  0,
		Models.TaskApproved:  0,
	}
	for _, t := range tasks {
		counts[t.Status]++
	}
	return counts
}
