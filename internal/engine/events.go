package engine

import (
	"sync"
	"time"
)

// LogType classifies a day log entry.
type LogType string

const (
	LogInfo   LogType = "INFO"
	LogAction LogType = "ACTION"
	LogMarket LogType = "MARKET"
	LogError  LogType = "ERROR"
)

// Event is a notable occurrence during a day.
type Event struct {
	Day     int       `json:"day"`
	Type    LogType   `json:"type"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// eventLog keeps the most recent events, dropping the oldest past limit.
type eventLog struct {
	mu     sync.Mutex
	limit  int
	events []Event
}

func newEventLog(limit int) *eventLog {
	return &eventLog{limit: limit}
}

func (e *eventLog) add(day int, typ LogType, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, Event{Day: day, Type: typ, Message: msg, Time: time.Now().UTC()})
	if len(e.events) > e.limit {
		e.events = append(e.events[:0:0], e.events[len(e.events)-e.limit:]...)
	}
}

func (e *eventLog) recent(limit int) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := 0
	if limit > 0 && len(e.events) > limit {
		start = len(e.events) - limit
	}
	return append([]Event(nil), e.events[start:]...)
}

func (e *eventLog) reset() {
	e.mu.Lock()
	e.events = nil
	e.mu.Unlock()
}
