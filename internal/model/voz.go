package model

import (
	"slices"
	"time"
)

// Voz 已发布的语音动态；作者名与头像为发布时的快照
type Voz struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	UserName      string    `json:"userName"`
	UserAvatarURL string    `json:"userAvatarUrl,omitempty"`
	AudioURL      string    `json:"audioUrl"`
	Caption       string    `json:"caption,omitempty"`
	LikesCount    int       `json:"likesCount"`
	IsLiked       bool      `json:"isLiked"`
	LikedBy       []string  `json:"likedBy,omitempty"`
	CommentsCount int       `json:"commentsCount"`
	Comments      []Comment `json:"comments"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Comment 评论，创建后不可变
type Comment struct {
	ID            string    `json:"id"`
	VozID         string    `json:"vozId"`
	UserID        string    `json:"userId"`
	UserName      string    `json:"userName"`
	UserAvatarURL string    `json:"userAvatarUrl,omitempty"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Clone 深拷贝
func (v *Voz) Clone() *Voz {
	if v == nil {
		return nil
	}
	c := *v
	c.LikedBy = slices.Clone(v.LikedBy)
	c.Comments = slices.Clone(v.Comments)
	return &c
}

// ForViewer 返回计算了 IsLiked 的副本
func (v *Voz) ForViewer(viewerID string) *Voz {
	c := v.Clone()
	c.IsLiked = viewerID != "" && slices.Contains(v.LikedBy, viewerID)
	return c
}
