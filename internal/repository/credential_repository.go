package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/model"
)

// ErrEmailInUse 邮箱已被注册
var ErrEmailInUse = errors.New("email already in use")

type CredentialRepository interface {
	Create(ctx context.Context, email, passwordHash string) (*model.Credential, error)
	GetByEmail(ctx context.Context, email string) (*model.Credential, error)
	GetByID(ctx context.Context, id string) (*model.Credential, error)
	MarkVerified(ctx context.Context, id string) error
	// Ensure 以给定 ID 写入凭据；ID 或邮箱已存在时不做任何修改
	Ensure(ctx context.Context, c *model.Credential) error
}

type credentialRepository struct{ db *gorm.DB }

func NewCredentialRepository(db *gorm.DB) CredentialRepository { return &credentialRepository{db: db} }

func (r *credentialRepository) Create(ctx context.Context, email, passwordHash string) (*model.Credential, error) {
	email = normalizeEmail(email)
	var cnt int64
	if err := r.db.WithContext(ctx).Model(&model.Credential{}).Where("email = ?", email).Count(&cnt).Error; err != nil {
		return nil, err
	}
	if cnt > 0 {
		return nil, ErrEmailInUse
	}
	c := &model.Credential{ID: uuid.New().String(), Email: email, PasswordHash: passwordHash}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}
	return c, nil
}

func (r *credentialRepository) GetByEmail(ctx context.Context, email string) (*model.Credential, error) {
	var c model.Credential
	err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("credential %s: %w", email, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *credentialRepository) GetByID(ctx context.Context, id string) (*model.Credential, error) {
	var c model.Credential
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("credential %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *credentialRepository) MarkVerified(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&model.Credential{}).Where("id = ?", id).Update("email_verified", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("credential %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (r *credentialRepository) Ensure(ctx context.Context, c *model.Credential) error {
	c.Email = normalizeEmail(c.Email)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c).Error
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
