package main

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	tasksEventName   = "tasks.request.metrics"
	tasksEventDomain = "board"

	attrStatusCode  = "http.status_code"
	attrBoardID     = "board.id"
	attrTotalMillis = "board.tasks.total_ms"
	attrFetchMillis = "board.tasks.fetch_ms"
	attrEncodeMs    = "board.tasks.encode_ms"
	attrReturned    = "board.tasks.returned"
	attrErrorStage  = "board.tasks.error_stage"
)

// logRecord is one JSON log line written by the gateway.
type logRecord struct {
	EventName    string         `json:"event.name"`
	EventDomain  string         `json:"event.domain"`
	SeverityText string         `json:"severity_text"`
	Attributes   map[string]any `json:"attributes"`
}

type stats struct {
	Count int
	Sum   float64
	Min   float64
	Max   float64
}

func (s *stats) add(v float64) {
	if s.Count == 0 {
		s.Min, s.Max = v, v
	}
	s.Count++
	s.Sum += v
	s.Min = math.Min(s.Min, v)
	s.Max = math.Max(s.Max, v)
}

type statSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

func (s *stats) summary() statSummary {
	if s == nil || s.Count == 0 {
		return statSummary{}
	}
	return statSummary{Count: s.Count, Min: s.Min, Max: s.Max, Avg: s.Sum / float64(s.Count)}
}

type summaryOutput struct {
	EventName      string                 `json:"event_name"`
	EventDomain    string                 `json:"event_domain"`
	TotalEvents    int                    `json:"total_events"`
	SeverityCounts map[string]int         `json:"severity_counts"`
	StatusCounts   map[string]int         `json:"status_counts"`
	BoardCounts    map[string]int         `json:"board_counts"`
	DurationMs     map[string]statSummary `json:"duration_ms"`
	TasksReturned  statSummary            `json:"tasks_returned"`
	ErrorStages    map[string]int         `json:"error_stages,omitempty"`
	SkippedLines   int                    `json:"skipped_lines"`
}

type collector struct {
	eventName   string
	eventDomain string

	count     int
	severity  map[string]int
	status    map[string]int
	boards    map[string]int
	durations map[string]*stats
	returned  stats
	stages    map[string]int
	skipped   int
}

func newCollector(eventName, eventDomain string) *collector {
	return &collector{
		eventName:   eventName,
		eventDomain: eventDomain,
		severity:    make(map[string]int),
		status:      make(map[string]int),
		boards:      make(map[string]int),
		durations:   make(map[string]*stats),
		stages:      make(map[string]int),
	}
}

// ingest consumes one log line. Lines prefixed by a container name and a
// pipe, as docker compose prints them, are accepted too.
func (c *collector) ingest(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if _, rest, ok := strings.Cut(trimmed, "|"); ok && !strings.HasPrefix(trimmed, "{") {
		trimmed = strings.TrimSpace(rest)
	}

	var rec logRecord
	dec := sonic.ConfigStd.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		c.skipped++
		return
	}
	if rec.EventName != c.eventName || (c.eventDomain != "" && rec.EventDomain != c.eventDomain) {
		return
	}
	c.add(rec)
}

func (c *collector) add(rec logRecord) {
	c.count++
	sev := strings.ToUpper(strings.TrimSpace(rec.SeverityText))
	if sev == "" {
		sev = "UNSPECIFIED"
	}
	c.severity[sev]++

	attrs := rec.Attributes
	if v, ok := asFloat(attrs[attrStatusCode]); ok {
		c.status[strconv.Itoa(int(v))]++
	}
	if id, ok := attrs[attrBoardID].(string); ok && id != "" {
		c.boards[id]++
	}
	for key, attr := range map[string]string{"total": attrTotalMillis, "fetch": attrFetchMillis, "encode": attrEncodeMs} {
		if v, ok := asFloat(attrs[attr]); ok {
			s := c.durations[key]
			if s == nil {
				s = &stats{}
				c.durations[key] = s
			}
			s.add(v)
		}
	}
	if v, ok := asFloat(attrs[attrReturned]); ok {
		c.returned.add(v)
	}
	if stage, ok := attrs[attrErrorStage].(string); ok && stage != "" {
		c.stages[stage]++
	}
}

func (c *collector) summary() summaryOutput {
	durations := make(map[string]statSummary, len(c.durations))
	for k, s := range c.durations {
		durations[k] = s.summary()
	}
	out := summaryOutput{
		EventName:      c.eventName,
		EventDomain:    c.eventDomain,
		TotalEvents:    c.count,
		SeverityCounts: c.severity,
		StatusCounts:   c.status,
		BoardCounts:    c.boards,
		DurationMs:     durations,
		TasksReturned:  c.returned.summary(),
		SkippedLines:   c.skipped,
	}
	if len(c.stages) > 0 {
		out.ErrorStages = c.stages
	}
	return out
}

func (s summaryOutput) ShortString() string {
	total := s.DurationMs["total"]
	return strings.Join([]string{
		"event=" + s.EventName,
		"total=" + strconv.Itoa(s.TotalEvents),
		"info=" + strconv.Itoa(s.SeverityCounts["INFO"]),
		"warn=" + strconv.Itoa(s.SeverityCounts["WARN"]),
		"error=" + strconv.Itoa(s.SeverityCounts["ERROR"]),
		"avg_total_ms=" + strconv.FormatFloat(total.Avg, 'f', 2, 64),
		"max_total_ms=" + strconv.FormatFloat(total.Max, 'f', 2, 64),
	}, " ")
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
