package model

import "time"

// Message 私信，按会话追加、创建后不可变
type Message struct {
	ID          string    `json:"id"`
	ChatID      string    `json:"chatId"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	VoiceURL    string    `json:"voiceUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	IsRead      bool      `json:"isRead"`
}

// Chat 会话列表项
type Chat struct {
	ID             string    `json:"id"`
	ParticipantIDs []string  `json:"participantIds"`
	PartnerID      string    `json:"partnerId"`
	LastMessage    *Message  `json:"lastMessage"`
	UpdatedAt      time.Time `json:"updatedAt"`
	UnreadCount    int       `json:"unreadCount"`
}
