// Package dialogue implements the custom-action webhook the dialogue engine
// calls when a story step names one of our actions. Conversation state comes
// in as an explicit Tracker and every change goes back out as an Event; the
// package keeps nothing between calls.
package dialogue

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

// Message is the latest user utterance as seen by the dialogue engine.
type Message struct {
	Text   string         `json:"text"`
	Intent map[string]any `json:"intent,omitempty"`
}

// Tracker is the conversation snapshot sent with every action call.
type Tracker struct {
	SenderID      string         `json:"sender_id"`
	Slots         map[string]any `json:"slots"`
	LatestMessage Message        `json:"latest_message"`
}

// Slot returns the slot value. Null-valued slots are reported as absent.
func (t Tracker) Slot(name string) (any, bool) {
	v, ok := t.Slots[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// SlotString returns a slot rendered as a string. Empty strings are absent.
func (t Tracker) SlotString(name string) (string, bool) {
	v, ok := t.Slot(name)
	if !ok {
		return "", false
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = fmt.Sprint(x)
	}
	if s == "" {
		return "", false
	}
	return s, true
}

// Event is a tracker mutation returned to the dialogue engine.
type Event struct {
	Event     string   `json:"event"`
	Timestamp *float64 `json:"timestamp"`
	Name      string   `json:"name,omitempty"`
	Value     any      `json:"value"`
}

// SlotSet sets slot name to value.
func SlotSet(name string, value any) Event {
	return Event{Event: "slot", Name: name, Value: value}
}

// Response is one bot utterance.
type Response struct {
	Text string `json:"text"`
}

// ActionRequest is the body the dialogue engine posts to the webhook.
type ActionRequest struct {
	NextAction string         `json:"next_action"`
	SenderID   string         `json:"sender_id"`
	Tracker    Tracker        `json:"tracker"`
	Domain     map[string]any `json:"domain,omitempty"`
	Version    string         `json:"version,omitempty"`
}

// ActionResponse carries the events and utterances produced by one action.
type ActionResponse struct {
	Events    []Event    `json:"events"`
	Responses []Response `json:"responses"`
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// Dispatcher collects the utterances of one action run.
type Dispatcher struct {
	messages []Response
}

func (d *Dispatcher) Utter(text string) {
	d.messages = append(d.messages, Response{Text: text})
}

// Messages returns the utterances in the order they were made.
func (d *Dispatcher) Messages() []Response {
	if d.messages == nil {
		return []Response{}
	}
	return d.messages
}
