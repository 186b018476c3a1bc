package Models

import "strings"

// Top-level collections.
const (
	ProjectsCollection = "projects"
	TasksCollection    = "tasks"
	UsersCollection    = "users"
	WorkLogsCollection = "workLogs"
)

func ProjectPath(projectID string) string {
	return ProjectsCollection + "/" + projectID
}

func SubMenusPath(projectID string) string {
	return ProjectPath(projectID) + "/subMenus"
}

func MessagesPath(projectID, subMenuID string) string {
	return SubMenusPath(projectID) + "/" + subMenuID + "/messages"
}

func TaskPath(taskID string) string {
	return TasksCollection + "/" + taskID
}

func UserPath(uid string) string {
	return UsersCollection + "/" + uid
}

func NotificationsPath(uid string) string {
	return UserPath(uid) + "/notifications"
}

func NotificationPath(uid, notificationID string) string {
	return NotificationsPath(uid) + "/" + notificationID
}

func LeaveDaysPath(uid string) string {
	return UserPath(uid) + "/leaveDays"
}

func LeaveDayPath(uid, dateKey string) string {
	return LeaveDaysPath(uid) + "/" + dateKey
}

// WorkLogID is the deterministic document id for a user's work log on a day,
// so the store itself rejects a second clock-in for the same day.
func WorkLogID(uid, dateKey string) string {
	return uid + "_" + dateKey
}

func WorkLogPath(id string) string {
	return WorkLogsCollection + "/" + id
}

// SplitPath returns the parent collection path and the trailing document id.
func SplitPath(path string) (collection, id string) {
	path = strings.Trim(path, "/")
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
