package audit

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// Reader reads events across the active journal and its rotated segments.
type Reader struct {
	logDir string
}

// NewReader creates a Reader for logDir.
func NewReader(logDir string) *Reader {
	return &Reader{logDir: logDir}
}

// ListRuns returns every run in the journal, oldest first.
func (r *Reader) ListRuns() ([]RunInfo, error) {
	events, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	byRun := make(map[RunID][]AuditEvent)
	var order []RunID
	for _, e := range events {
		if e.RunID == "" {
			continue
		}
		if _, seen := byRun[e.RunID]; !seen {
			order = append(order, e.RunID)
		}
		byRun[e.RunID] = append(byRun[e.RunID], e)
	}

	runs := make([]RunInfo, 0, len(order))
	for _, id := range order {
		runs = append(runs, buildRunInfo(id, byRun[id]))
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTime.Before(runs[j].StartTime)
	})
	return runs, nil
}

// GetRun returns all events of one run.
func (r *Reader) GetRun(runID RunID) ([]AuditEvent, error) {
	events, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	var out []AuditEvent
	for _, e := range events {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return out, nil
}

// LatestRun returns the most recently started run.
func (r *Reader) LatestRun() (*RunInfo, error) {
	runs, err := r.ListRuns()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs found")
	}
	return &runs[len(runs)-1], nil
}

// ReadAll reads every event in chronological file order.
func (r *Reader) ReadAll() ([]AuditEvent, error) {
	files, err := GetAllLogFiles(r.logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get log files: %w", err)
	}

	var events []AuditEvent
	for _, f := range files {
		fileEvents, err := readEventsFromFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read events from %s: %w", f, err)
		}
		events = append(events, fileEvents...)
	}
	return events, nil
}

func readEventsFromFile(path string) ([]AuditEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(file)
	const maxLine = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		event, err := UnmarshalJSONLine(line)
		if err != nil {
			return nil, fmt.Errorf("failed to parse line %d: %w", lineNum, err)
		}
		events = append(events, *event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}
	return events, nil
}

func buildRunInfo(runID RunID, events []AuditEvent) RunInfo {
	info := RunInfo{
		RunID:  runID,
		Status: RunStatusInProgress,
	}

	var counted RunSummary
	for _, e := range events {
		switch e.EventType {
		case EventRunStart:
			info.StartTime = e.Timestamp
			info.AppVersion = e.Metadata["appVersion"]
			info.RunType = RunType(e.Metadata["runType"])
			info.Root = e.Metadata["root"]
		case EventRunEnd:
			end := e.Timestamp
			info.EndTime = &end
			if s, ok := e.Metadata["status"]; ok {
				info.Status = RunStatus(s)
			}
			info.Summary = summaryFromMetadata(e.Metadata)
		case EventPlan:
			counted.Planned++
		case EventSkip:
			counted.Skipped++
		case EventError:
			counted.Failed++
		}
	}

	if info.EndTime == nil {
		info.Summary = counted
	}
	return info
}

func summaryFromMetadata(md map[string]string) RunSummary {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(md[key])
		return n
	}
	return RunSummary{
		Planned:   atoi("planned"),
		Succeeded: atoi("succeeded"),
		Failed:    atoi("failed"),
		Skipped:   atoi("skipped"),
	}
}
