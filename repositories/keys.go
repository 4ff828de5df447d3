package repositories

import (
	"fmt"

	"github.com/Finding-a-partner/finding-a-partner/domain"
)

// Key layout. Numeric ids are zero padded to 19 digits so that the
// lexicographic order of keys matches their numeric order:
//
//	chat:{id}                          chat record
//	pair:USER:{min}:{max}              private pair guard -> chat id
//	member:{chat}:{type}:{id}          participant record
//	chats-of:{type}:{id}:{chat}        membership index
//	msg:{chat}:{id}                    message record
//	msg-chat:{id}                      message -> chat back reference
//	user:{email}                       account record
const (
	chatSeqKey    = "seq:chat"
	messageSeqKey = "seq:msg"
)

func chatKey(id domain.ChatID) []byte {
	return []byte(fmt.Sprintf("chat:%019d", id))
}

func pairKey(a, b int64) []byte {
	lo, hi := domain.PrivatePair(a, b)
	return []byte(fmt.Sprintf("pair:%s:%019d:%019d", domain.ParticipantUser, lo, hi))
}

func memberKey(chatID domain.ChatID, identity domain.Identity) []byte {
	return []byte(fmt.Sprintf("member:%019d:%s:%019d", chatID, identity.Type, identity.ID))
}

func memberPrefix(chatID domain.ChatID) []byte {
	return []byte(fmt.Sprintf("member:%019d:", chatID))
}

func chatsOfKey(identity domain.Identity, chatID domain.ChatID) []byte {
	return []byte(fmt.Sprintf("chats-of:%s:%019d:%019d", identity.Type, identity.ID, chatID))
}

func chatsOfPrefix(identity domain.Identity) []byte {
	return []byte(fmt.Sprintf("chats-of:%s:%019d:", identity.Type, identity.ID))
}

func messageKey(chatID domain.ChatID, id domain.MessageID) []byte {
	return []byte(fmt.Sprintf("msg:%019d:%019d", chatID, id))
}

func messagePrefix(chatID domain.ChatID) []byte {
	return []byte(fmt.Sprintf("msg:%019d:", chatID))
}

func messageChatKey(id domain.MessageID) []byte {
	return []byte(fmt.Sprintf("msg-chat:%019d", id))
}

func userKey(email string) []byte {
	return []byte("user:" + email)
}
