// Package seed loads the demo fixtures into the document and credential stores.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/d60-Lab/friendlyvoice/internal/messaging"
	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
	"github.com/d60-Lab/friendlyvoice/pkg/logger"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

// Fixtures 演示数据
type Fixtures struct {
	Password   string            `yaml:"password"`
	Users      []UserFixture     `yaml:"users"`
	Voces      []VozFixture      `yaml:"voces"`
	Messages   []MessageFixture  `yaml:"messages"`
	Ecosystems []model.Ecosystem `yaml:"ecosystems"`
}

type UserFixture struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	Email           string   `yaml:"email"`
	AvatarURL       string   `yaml:"avatarUrl"`
	Bio             string   `yaml:"bio"`
	Interests       []string `yaml:"interests"`
	PersonalityTags []string `yaml:"personalityTags"`
	Hobbies         []string `yaml:"hobbies"`
	Following       []string `yaml:"following"`
}

type VozFixture struct {
	ID       string           `yaml:"id"`
	User     string           `yaml:"user"`
	AudioURL string           `yaml:"audioUrl"`
	Caption  string           `yaml:"caption"`
	Ago      time.Duration    `yaml:"ago"`
	LikedBy  []string         `yaml:"likedBy"`
	Comments []CommentFixture `yaml:"comments"`
}

type CommentFixture struct {
	ID   string        `yaml:"id"`
	User string        `yaml:"user"`
	Text string        `yaml:"text"`
	Ago  time.Duration `yaml:"ago"`
}

type MessageFixture struct {
	ID       string        `yaml:"id"`
	From     string        `yaml:"from"`
	To       string        `yaml:"to"`
	VoiceURL string        `yaml:"voiceUrl"`
	Ago      time.Duration `yaml:"ago"`
	Read     bool          `yaml:"read"`
}

// Result 写入统计
type Result struct {
	Users      int
	Voces      int
	Messages   int
	Ecosystems int
}

// Default 解析内嵌的 fixtures.yaml
func Default() (*Fixtures, error) { return Parse(fixturesYAML) }

// Parse 解析并校验 YAML 演示数据
func Parse(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate 检查引用完整性：ID 唯一且不含 "_"，关注、作者与私信双方均存在
func (f *Fixtures) Validate() error {
	users := make(map[string]struct{}, len(f.Users))
	for _, u := range f.Users {
		if u.ID == "" || strings.Contains(u.ID, "_") {
			return fmt.Errorf("invalid user id %q", u.ID)
		}
		if _, dup := users[u.ID]; dup {
			return fmt.Errorf("duplicate user id %q", u.ID)
		}
		users[u.ID] = struct{}{}
	}
	known := func(kind, id string) error {
		if _, ok := users[id]; !ok {
			return fmt.Errorf("%s references unknown user %q", kind, id)
		}
		return nil
	}
	for _, u := range f.Users {
		for _, id := range u.Following {
			if id == u.ID {
				return fmt.Errorf("user %q follows itself", u.ID)
			}
			if err := known("following of "+u.ID, id); err != nil {
				return err
			}
		}
	}
	for _, v := range f.Voces {
		if err := known("voz "+v.ID, v.User); err != nil {
			return err
		}
		for _, c := range v.Comments {
			if err := known("comment "+c.ID, c.User); err != nil {
				return err
			}
		}
		for _, id := range v.LikedBy {
			if err := known("like on "+v.ID, id); err != nil {
				return err
			}
		}
	}
	for _, m := range f.Messages {
		if err := known("message "+m.ID, m.From); err != nil {
			return err
		}
		if err := known("message "+m.ID, m.To); err != nil {
			return err
		}
		if m.From == m.To {
			return fmt.Errorf("message %q is addressed to its sender", m.ID)
		}
	}
	return nil
}

// Profiles 构造用户文档；Followers 由全部 Following 反推，保证关注关系两侧一致
func (f *Fixtures) Profiles() []*model.User {
	followers := map[string][]string{}
	for _, u := range f.Users {
		for _, id := range u.Following {
			followers[id] = model.AddUnique(followers[id], u.ID)
		}
	}
	out := make([]*model.User, 0, len(f.Users))
	for _, u := range f.Users {
		p := model.NewDefaultUser(u.ID, strings.ToLower(u.Email))
		p.Name = u.Name
		p.EmailVerified = true
		p.Bio = u.Bio
		if u.AvatarURL != "" {
			p.AvatarURL = u.AvatarURL
		}
		p.Interests = orEmpty(u.Interests)
		p.PersonalityTags = orEmpty(u.PersonalityTags)
		p.Hobbies = orEmpty(u.Hobbies)
		p.Following = orEmpty(slices.Clone(u.Following))
		p.Followers = orEmpty(followers[u.ID])
		p.OnboardingComplete = true
		out = append(out, p)
	}
	return out
}

// Apply 写入全部演示数据；重复执行会覆盖文档，已存在的凭据保持不变
func Apply(ctx context.Context, f *Fixtures, docs repository.DocumentRepository, creds repository.CredentialRepository, bcryptCost int, now time.Time) (*Result, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(f.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}

	res := &Result{}
	profiles := f.Profiles()
	byID := make(map[string]*model.User, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
		cred := &model.Credential{ID: p.ID, Email: p.Email, PasswordHash: string(hash), EmailVerified: true}
		if err := creds.Ensure(ctx, cred); err != nil {
			return nil, fmt.Errorf("seed credential %s: %w", p.ID, err)
		}
		if err := docs.Set(ctx, model.CollectionUsers, p.ID, p); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", p.ID, err)
		}
		res.Users++
	}

	for _, vf := range f.Voces {
		v := buildVoz(vf, byID, now)
		if err := docs.Set(ctx, model.CollectionVoces, v.ID, v); err != nil {
			return nil, fmt.Errorf("seed voz %s: %w", v.ID, err)
		}
		res.Voces++
	}

	for _, mf := range f.Messages {
		m := &model.Message{
			ID:          mf.ID,
			ChatID:      messaging.ConversationID(mf.From, mf.To),
			SenderID:    mf.From,
			RecipientID: mf.To,
			VoiceURL:    mf.VoiceURL,
			CreatedAt:   now.Add(-mf.Ago).UTC(),
			IsRead:      mf.Read,
		}
		if err := docs.SetPartitioned(ctx, model.CollectionMessages, m.ID, m.ChatID, m); err != nil {
			return nil, fmt.Errorf("seed message %s: %w", m.ID, err)
		}
		res.Messages++
	}

	for _, e := range f.Ecosystems {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now.UTC()
		}
		if err := docs.Set(ctx, model.CollectionEcosystems, e.ID, &e); err != nil {
			return nil, fmt.Errorf("seed ecosystem %s: %w", e.ID, err)
		}
		res.Ecosystems++
	}

	logger.Info("fixtures applied",
		zap.Int("users", res.Users),
		zap.Int("voces", res.Voces),
		zap.Int("messages", res.Messages),
		zap.Int("ecosystems", res.Ecosystems),
	)
	return res, nil
}

func buildVoz(vf VozFixture, users map[string]*model.User, now time.Time) *model.Voz {
	author := users[vf.User]
	v := &model.Voz{
		ID:            vf.ID,
		UserID:        author.ID,
		UserName:      author.Name,
		UserAvatarURL: author.AvatarURL,
		AudioURL:      vf.AudioURL,
		Caption:       vf.Caption,
		LikedBy:       []string{},
		Comments:      []model.Comment{},
		CreatedAt:     now.Add(-vf.Ago).UTC(),
	}
	for _, id := range vf.LikedBy {
		v.LikedBy = model.AddUnique(v.LikedBy, id)
	}
	v.LikesCount = len(v.LikedBy)
	for _, cf := range vf.Comments {
		u := users[cf.User]
		v.Comments = append(v.Comments, model.Comment{
			ID:            cf.ID,
			VozID:         v.ID,
			UserID:        u.ID,
			UserName:      u.Name,
			UserAvatarURL: u.AvatarURL,
			Text:          cf.Text,
			CreatedAt:     now.Add(-cf.Ago).UTC(),
		})
	}
	v.CommentsCount = len(v.Comments)
	return v
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
