package amqp

import (
	"encoding/json"
	"time"
)

// CalendarChangedMessage announces that a scope's calendar data changed.
// It carries only the change coordinates; consumers reload whatever they
// need from the store.
type CalendarChangedMessage struct {
	Scope     string    `json:"scope"`
	Date      string    `json:"date"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

func NewCalendarChangedMessage(scope, date, kind string) *CalendarChangedMessage {
	return &CalendarChangedMessage{
		Scope:     scope,
		Date:      date,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

func (m *CalendarChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func CalendarChangedMessageFromJSON(data []byte) (*CalendarChangedMessage, error) {
	var msg CalendarChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
