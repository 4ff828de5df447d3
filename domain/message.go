// Package domain contains core concepts of the messaging system.
// This file defines Message entries and the delivery status chain.
// Messages are immutable once appended, except for status transitions.
package domain

import "time"

type MessageID int64

type MessageStatus string

const (
	StatusSent      MessageStatus = "SENT"
	StatusDelivered MessageStatus = "DELIVERED"
	StatusRead      MessageStatus = "READ"
)

var statusRank = map[MessageStatus]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// Valid reports whether s is one of the three known statuses.
func (s MessageStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next advances the
// SENT -> DELIVERED -> READ chain. The chain never goes backward.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	from, okFrom := statusRank[s]
	to, okTo := statusRank[next]
	return okFrom && okTo && to > from
}

// Message is an immutable entry in a chat's log. ID is the storage
// assigned ordering key: strictly increasing in insertion order, so it
// also defines the total order of messages within a chat.
type Message struct {
	ID        MessageID     `json:"id"`
	ChatID    ChatID        `json:"chat_id"`
	Sender    Identity      `json:"sender"`
	Content   string        `json:"content"`
	Status    MessageStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}
