package model

import "time"

// Credential 本地认证凭据（邮箱 + 密码哈希）
type Credential struct {
	ID            string `gorm:"primaryKey;type:varchar(36)"`
	Email         string `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash  string `gorm:"type:varchar(255);not null"`
	EmailVerified bool   `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Credential) TableName() string { return "credentials" }
