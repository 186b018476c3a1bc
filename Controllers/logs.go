package Controllers

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"Workdesk/AbstractFunctions"
	"Workdesk/middleware"
)

// LogGroup represents a group of logs by route
type LogGroup struct {
	Path        string                `json:"path"`
	Method      string                `json:"method"`
	Count       int                   `json:"count"`
	AvgLatency  float64               `json:"avg_latency_ms"`
	MinLatency  float64               `json:"min_latency_ms"`
	MaxLatency  float64               `json:"max_latency_ms"`
	SuccessRate float64               `json:"success_rate"`
	Logs        []middleware.LogData `json:"logs"`
}

// LogsResponse represents the response structure for logs API
type LogsResponse struct {
	Groups      []LogGroup `json:"groups"`
	TotalLogs   int        `json:"total_logs"`
	TotalGroups int        `json:"total_groups"`
	Page        int        `json:"page"`
	PageSize    int        `json:"page_size"`
	TotalPages  int        `json:"total_pages"`
	DateFrom    time.Time  `json:"date_from"`
	DateTo      time.Time  `json:"date_to"`
}

// logRange reads ?date_from=&date_to= as reference-zone days, defaulting to
// today. Both ends are inclusive.
func (h *Handlers) logRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	today := AbstractFunctions.StartOfDay(h.now())
	from, err := h.dateParam(c, "date_from", today)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := h.dateParam(c, "date_to", today)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func (h *Handlers) logFile() string {
	if h.RequestLog == "" {
		return middleware.RequestLogPath
	}
	return h.RequestLog
}

// readLogsFromFile reads logs from the specified file and filters by date range.
// A missing file is an empty log.
func readLogsFromFile(filePath string, dateFrom, dateTo time.Time) ([]middleware.LogData, error) {
	file, err := os.Open(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var logs []middleware.LogData
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry middleware.LogData
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if !entry.Timestamp.Before(dateFrom) && !entry.Timestamp.After(dateTo) {
			logs = append(logs, entry)
		}
	}
	return logs, scanner.Err()
}

func filterLogs(logs []middleware.LogData, pathFilter, methodFilter, statusFilter, userFilter string) []middleware.LogData {
	status, statusErr := strconv.Atoi(statusFilter)
	var filtered []middleware.LogData
	for _, entry := range logs {
		if pathFilter != "" && !strings.Contains(strings.ToLower(entry.Path), strings.ToLower(pathFilter)) {
			continue
		}
		if methodFilter != "" && !strings.EqualFold(entry.Method, methodFilter) {
			continue
		}
		if statusFilter != "" && statusErr == nil && entry.Status != status {
			continue
		}
		if userFilter != "" && entry.UserID != userFilter {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}

func latencyMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// groupLogsByPath groups logs by method and path, busiest first.
func groupLogsByPath(logs []middleware.LogData) []LogGroup {
	groupMap := make(map[string]*LogGroup)
	successes := make(map[string]int)
	total := make(map[string]float64)

	for _, entry := range logs {
		key := fmt.Sprintf("%s %s", entry.Method, entry.Path)
		ms := latencyMs(entry.Latency)

		group, exists := groupMap[key]
		if !exists {
			group = &LogGroup{Path: entry.Path, Method: entry.Method, MinLatency: ms, MaxLatency: ms}
			groupMap[key] = group
		}
		group.Count++
		group.Logs = append(group.Logs, entry)
		total[key] += ms
		if ms < group.MinLatency {
			group.MinLatency = ms
		}
		if ms > group.MaxLatency {
			group.MaxLatency = ms
		}
		if entry.Status >= 200 && entry.Status < 300 {
			successes[key]++
		}
	}

	groups := make([]LogGroup, 0, len(groupMap))
	for key, group := range groupMap {
		group.AvgLatency = total[key] / float64(group.Count)
		group.SuccessRate = float64(successes[key]) / float64(group.Count)
		groups = append(groups, *group)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Method+groups[i].Path < groups[j].Method+groups[j].Path
	})
	return groups
}

// GetLogs pages through the request log grouped by route.
func (h *Handlers) GetLogs(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "50"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 1000 {
		pageSize = 50
	}

	dateFrom, dateTo, err := h.logRange(c)
	if err != nil {
		return h.fail(c, err)
	}
	logs, err := readLogsFromFile(h.logFile(), dateFrom, dateTo)
	if err != nil {
		return h.fail(c, fmt.Errorf("read request log: %w", err))
	}

	filtered := filterLogs(logs, c.Query("path"), c.Query("method"), c.Query("status"), c.Query("user"))
	groups := groupLogsByPath(filtered)

	totalGroups := len(groups)
	startIndex := min((page-1)*pageSize, totalGroups)
	endIndex := min(startIndex+pageSize, totalGroups)

	return c.JSON(LogsResponse{
		Groups:      groups[startIndex:endIndex],
		TotalLogs:   len(filtered),
		TotalGroups: totalGroups,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  (totalGroups + pageSize - 1) / pageSize,
		DateFrom:    dateFrom,
		DateTo:      dateTo,
	})
}

// GetLogStats returns statistics about logs
func (h *Handlers) GetLogStats(c *fiber.Ctx) error {
	dateFrom, dateTo, err := h.logRange(c)
	if err != nil {
		return h.fail(c, err)
	}
	logs, err := readLogsFromFile(h.logFile(), dateFrom, dateTo)
	if err != nil {
		return h.fail(c, fmt.Errorf("read request log: %w", err))
	}

	var successfulRequests, errorRequests int
	var totalLatency, minLatency, maxLatency time.Duration
	methodStats := make(map[string]int)
	statusStats := make(map[int]int)
	pathStats := make(map[string]int)

	for i, entry := range logs {
		if entry.Status >= 200 && entry.Status < 300 {
			successfulRequests++
		} else if entry.Status >= 400 {
			errorRequests++
		}
		totalLatency += entry.Latency
		if i == 0 || entry.Latency < minLatency {
			minLatency = entry.Latency
		}
		if entry.Latency > maxLatency {
			maxLatency = entry.Latency
		}
		methodStats[entry.Method]++
		statusStats[entry.Status]++
		pathStats[entry.Path]++
	}

	totalRequests := len(logs)
	avgLatency := time.Duration(0)
	successRate := 0.0
	if totalRequests > 0 {
		avgLatency = totalLatency / time.Duration(totalRequests)
		successRate = float64(successfulRequests) / float64(totalRequests) * 100
	}

	type pathCount struct {
		Path  string `json:"path"`
		Count int    `json:"count"`
	}
	topPaths := make([]pathCount, 0, len(pathStats))
	for path, count := range pathStats {
		topPaths = append(topPaths, pathCount{path, count})
	}
	sort.Slice(topPaths, func(i, j int) bool {
		if topPaths[i].Count != topPaths[j].Count {
			return topPaths[i].Count > topPaths[j].Count
		}
		return topPaths[i].Path < topPaths[j].Path
	})
	if len(topPaths) > 10 {
		topPaths = topPaths[:10]
	}

	return c.JSON(fiber.Map{
		"total_requests":      totalRequests,
		"successful_requests": successfulRequests,
		"error_requests":      errorRequests,
		"success_rate":        successRate,
		"avg_latency_ms":      latencyMs(avgLatency),
		"min_latency_ms":      latencyMs(minLatency),
		"max_latency_ms":      latencyMs(maxLatency),
		"method_stats":        methodStats,
		"status_stats":        statusStats,
		"top_paths":           topPaths,
		"date_from":           dateFrom,
		"date_to":             dateTo,
	})
}

// SyncStatus reports failed live views and open subscriptions.
func (h *Handlers) SyncStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"failed":        h.Hub.Status(),
		"subscriptions": h.Hub.Active(),
		"chat_feeds":    h.Hub.ChatFeeds(),
		"watchers":      h.Hub.Watchers(),
	})
}

// RetrySync reopens the live views whose subscriptions failed.
func (h *Handlers) RetrySync(c *fiber.Ctx) error {
	if err := h.Hub.Retry(); err != nil {
		return h.fail(c, err)
	}
	return h.SyncStatus(c)
}
