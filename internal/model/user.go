package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// 文档集合名
const (
	CollectionUsers      = "users"
	CollectionVoces      = "voces"
	CollectionMessages   = "messages"
	CollectionEcosystems = "ecosystems"
)

// User 用户资料文档（users/<id>）
// 不变量：ID 不会出现在自身的 Followers / Following 中
type User struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name,omitempty"`
	Email              string   `json:"email,omitempty"`
	EmailVerified      bool     `json:"emailVerified"`
	AvatarURL          string   `json:"avatarUrl,omitempty"`
	Bio                string   `json:"bio"`
	Followers          []string `json:"followers"`
	Following          []string `json:"following"`
	Interests          []string `json:"interests"`
	PersonalityTags    []string `json:"personalityTags"`
	BioSoundURL        string   `json:"bioSoundUrl"`
	DateOfBirth        string   `json:"dateOfBirth,omitempty"`
	Hobbies            []string `json:"hobbies"`
	OnboardingComplete bool     `json:"onboardingComplete"`
}

// NewDefaultUser 首次认证时创建的默认资料
func NewDefaultUser(id, email string) *User {
	name := "New user"
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		name = local
	}
	return &User{
		ID:              id,
		Name:            name,
		Email:           email,
		AvatarURL:       DefaultAvatarURL(id),
		Followers:       []string{},
		Following:       []string{},
		Interests:       []string{},
		PersonalityTags: []string{},
		Hobbies:         []string{},
	}
}

// DefaultAvatarURL 以用户 ID 为种子生成的占位头像
func DefaultAvatarURL(id string) string {
	return "https://api.dicebear.com/7.x/personas/svg?seed=" + id
}

// IsFollowing 纯成员判断
func (u *User) IsFollowing(id string) bool {
	return u != nil && slices.Contains(u.Following, id)
}

// HasFollower 纯成员判断
func (u *User) HasFollower(id string) bool {
	return u != nil && slices.Contains(u.Followers, id)
}

// Clone 深拷贝，避免共享切片
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Followers = slices.Clone(u.Followers)
	c.Following = slices.Clone(u.Following)
	c.Interests = slices.Clone(u.Interests)
	c.PersonalityTags = slices.Clone(u.PersonalityTags)
	c.Hobbies = slices.Clone(u.Hobbies)
	return &c
}

// ApplyFields 对资料做与文档存储相同的浅合并（字段名为 JSON 名）
func (u *User) ApplyFields(fields map[string]any) (*User, error) {
	merged, err := MergeJSON(u, fields)
	if err != nil {
		return nil, err
	}
	var out User
	if err := json.Unmarshal(merged, &out); err != nil {
		return nil, fmt.Errorf("decode merged user: %w", err)
	}
	return &out, nil
}

// MergeJSON 将 fields 浅合并到 doc 的 JSON 顶层字段上
func MergeJSON(doc any, fields map[string]any) ([]byte, error) {
	var raw []byte
	switch d := doc.(type) {
	case []byte:
		raw = d
	case json.RawMessage:
		raw = d
	default:
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	m := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
	}
	for k, v := range fields {
		m[k] = v
	}
	return json.Marshal(m)
}

// AddUnique 返回追加 id 后的新切片（已存在则原样拷贝）
func AddUnique(ids []string, id string) []string {
	out := slices.Clone(ids)
	if out == nil {
		out = []string{}
	}
	if !slices.Contains(out, id) {
		out = append(out, id)
	}
	return out
}

// Remove 返回删除 id 后的新切片
func Remove(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// ProfileUpdate 可由用户修改的资料字段（nil 表示不修改）
type ProfileUpdate struct {
	Name            *string  `json:"name,omitempty" binding:"omitempty,min=1,max=80"`
	Bio             *string  `json:"bio,omitempty" binding:"omitempty,max=500"`
	AvatarURL       *string  `json:"avatarUrl,omitempty" binding:"omitempty,url,imghost"`
	Interests       []string `json:"interests,omitempty" binding:"omitempty,max=20,dive,min=1,max=40"`
	PersonalityTags []string `json:"personalityTags,omitempty" binding:"omitempty,max=20,dive,min=1,max=40"`
	BioSoundURL     *string  `json:"bioSoundUrl,omitempty"`
	DateOfBirth     *string  `json:"dateOfBirth,omitempty" binding:"omitempty,datetime=2006-01-02"`
	Hobbies         []string `json:"hobbies,omitempty" binding:"omitempty,max=20,dive,min=1,max=40"`
}

// Fields 转为部分更新字段
func (p ProfileUpdate) Fields() map[string]any {
	f := map[string]any{}
	if p.Name != nil {
		f["name"] = *p.Name
	}
	if p.Bio != nil {
		f["bio"] = *p.Bio
	}
	if p.AvatarURL != nil {
		f["avatarUrl"] = *p.AvatarURL
	}
	if p.Interests != nil {
		f["interests"] = p.Interests
	}
	if p.PersonalityTags != nil {
		f["personalityTags"] = p.PersonalityTags
	}
	if p.BioSoundURL != nil {
		f["bioSoundUrl"] = *p.BioSoundURL
	}
	if p.DateOfBirth != nil {
		f["dateOfBirth"] = *p.DateOfBirth
	}
	if p.Hobbies != nil {
		f["hobbies"] = p.Hobbies
	}
	return f
}

// Onboarding 完成引导时提交的数据
type Onboarding struct {
	Hobbies     []string `json:"hobbies" binding:"required,min=1,max=20,dive,min=1,max=40"`
	BioSoundURL string   `json:"bioSoundUrl" binding:"required"`
	AvatarURL   string   `json:"avatarUrl" binding:"required,url,imghost"`
}
