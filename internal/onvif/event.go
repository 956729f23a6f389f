// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package onvif

import (
	"strings"
	"time"
)

// MotionItem is the data item carrying the cell motion flag.
const MotionItem = "IsMotion"

// SimpleItem is a name/value pair from a notification's Source or Data set.
type SimpleItem struct {
	Name  string
	Value string
}

// Event is one decoded notification message.
type Event struct {
	Topic     string // e.g. tns1:RuleEngine/CellMotionDetector/Motion
	Time      time.Time
	Operation string // Initialized, Changed or Deleted
	Source    []SimpleItem
	Data      []SimpleItem
}

// DataValue returns the named data item, falling back to the first data item
// when no item carries that name.
func (e Event) DataValue(name string) (string, bool) {
	for _, it := range e.Data {
		if it.Name == name {
			return it.Value, true
		}
	}
	if len(e.Data) > 0 {
		return e.Data[0].Value, true
	}
	return "", false
}

type notificationMessage struct {
	Topic   string `xml:"Topic"`
	Message struct {
		Message struct {
			UtcTime           string          `xml:"UtcTime,attr"`
			PropertyOperation string          `xml:"PropertyOperation,attr"`
			Source            simpleItemGroup `xml:"Source"`
			Data              simpleItemGroup `xml:"Data"`
		} `xml:"Message"`
	} `xml:"Message"`
}

type simpleItemGroup struct {
	Items []struct {
		Name  string `xml:"Name,attr"`
		Value string `xml:"Value,attr"`
	} `xml:"SimpleItem"`
}

func (g simpleItemGroup) items() []SimpleItem {
	if len(g.Items) == 0 {
		return nil
	}
	out := make([]SimpleItem, 0, len(g.Items))
	for _, it := range g.Items {
		out = append(out, SimpleItem{Name: it.Name, Value: it.Value})
	}
	return out
}

func (n notificationMessage) event() Event {
	m := n.Message.Message
	ev := Event{
		Topic:     strings.TrimSpace(n.Topic),
		Operation: m.PropertyOperation,
		Source:    m.Source.items(),
		Data:      m.Data.items(),
	}
	if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(m.UtcTime)); err == nil {
		ev.Time = t
	}
	return ev
}
