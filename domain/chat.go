// Package domain contains core concepts of the messaging system.
// This file defines Chat entities, participant identities and roster
// invariants. No runtime, network, or UI logic should be added here.
package domain

import (
	"fmt"
	"time"
)

type ChatID int64

type ChatType string

const (
	ChatTypePrivate ChatType = "PRIVATE"
	ChatTypeGroup   ChatType = "GROUP"
	ChatTypeEvent   ChatType = "EVENT"
)

// ParticipantType tags which kind of entity an identity refers to.
// Keeping the tag next to the numeric id avoids mixing up a user id
// with a group id that happens to share the same value.
type ParticipantType string

const (
	ParticipantUser  ParticipantType = "USER"
	ParticipantGroup ParticipantType = "GROUP"
	ParticipantEvent ParticipantType = "EVENT"
)

// Identity addresses a participant: a stable id plus its entity type.
type Identity struct {
	ID   int64           `json:"id"`
	Type ParticipantType `json:"type"`
}

func UserIdentity(id int64) Identity {
	return Identity{ID: id, Type: ParticipantUser}
}

func (i Identity) String() string {
	return fmt.Sprintf("%s:%d", i.Type, i.ID)
}

type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Pair is the canonical unordered user pair of a private chat, smaller
// id first.
type Pair struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// Chat is a conversation container. For ChatTypePrivate the unordered
// pair of its two participants is unique across all private chats.
// Pair records that founding pair; it never changes after creation, so
// cleanup does not depend on whatever roster survives later mutations.
type Chat struct {
	ID        ChatID    `json:"id"`
	Type      ChatType  `json:"type"`
	Name      *string   `json:"name,omitempty"`
	EventID   *int64    `json:"event_id,omitempty"`
	Pair      *Pair     `json:"pair,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Participant links an identity to a chat. An identity appears at most
// once per chat.
type Participant struct {
	ChatID   ChatID    `json:"chat_id"`
	Identity Identity  `json:"identity"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// PrivatePair returns the two user identities of a private chat in
// canonical order (smaller id first), so that (a,b) and (b,a) always
// map to the same pair.
func PrivatePair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}
