package model

import "time"

// Ecosystem 主题语音房间（只读目录）
type Ecosystem struct {
	ID               string    `json:"id" yaml:"id"`
	Name             string    `json:"name" yaml:"name"`
	Topic            string    `json:"topic" yaml:"topic"`
	Description      string    `json:"description" yaml:"description"`
	Tags             []string  `json:"tags" yaml:"tags"`
	HostIDs          []string  `json:"hostIds" yaml:"hostIds"`
	CreatedBy        string    `json:"createdBy" yaml:"createdBy"`
	CreatedAt        time.Time `json:"createdAt" yaml:"createdAt"`
	IsActive         bool      `json:"isActive" yaml:"isActive"`
	ParticipantCount int       `json:"participantCount" yaml:"participantCount"`
}
