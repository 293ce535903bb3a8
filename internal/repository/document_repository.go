package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/model"
)

// DocumentRepository 文档存储：按 (collection, id) 读写 JSON 文档。
// 不提供跨文档事务，也不按字段查询。
type DocumentRepository interface {
	// Get 读取文档并解码到 out；不存在时返回 apperr.ErrNotFound
	Get(ctx context.Context, collection, id string, out any) error
	// Set 整体写入（覆盖）
	Set(ctx context.Context, collection, id string, doc any) error
	// SetPartitioned 整体写入并记录分组键
	SetPartitioned(ctx context.Context, collection, id, partition string, doc any) error
	// UpdatePartial 顶层字段浅合并；文档不存在时返回 apperr.ErrNotFound
	UpdatePartial(ctx context.Context, collection, id string, fields map[string]any) error
	List(ctx context.Context, collection string) ([]json.RawMessage, error)
	ListPartition(ctx context.Context, collection, partition string) ([]json.RawMessage, error)
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository { return &documentRepository{db: db} }

func (r *documentRepository) Get(ctx context.Context, collection, id string, out any) error {
	var doc model.Document
	err := r.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(doc.Body), out)
}

func (r *documentRepository) Set(ctx context.Context, collection, id string, doc any) error {
	return r.SetPartitioned(ctx, collection, id, "", doc)
}

func (r *documentRepository) SetPartitioned(ctx context.Context, collection, id, partition string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	row := &model.Document{Collection: collection, ID: id, Partition: partition, Body: string(body)}
	// 覆盖写：冲突时更新正文与分组键
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"partition_key", "body", "updated_at"}),
	}).Create(row).Error
}

func (r *documentRepository) UpdatePartial(ctx context.Context, collection, id string, fields map[string]any) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc model.Document
		err := tx.Where("collection = ? AND id = ?", collection, id).First(&doc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
		}
		if err != nil {
			return err
		}
		merged, err := model.MergeJSON([]byte(doc.Body), fields)
		if err != nil {
			return err
		}
		return tx.Model(&model.Document{}).
			Where("collection = ? AND id = ?", collection, id).
			Update("body", string(merged)).Error
	})
}

func (r *documentRepository) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	var rows []model.Document
	err := r.db.WithContext(ctx).Where("collection = ?", collection).Order("created_at, id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return bodies(rows), nil
}

func (r *documentRepository) ListPartition(ctx context.Context, collection, partition string) ([]json.RawMessage, error) {
	var rows []model.Document
	err := r.db.WithContext(ctx).
		Where("collection = ? AND partition_key = ?", collection, partition).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return bodies(rows), nil
}

func bodies(rows []model.Document) []json.RawMessage {
	res := make([]json.RawMessage, len(rows))
	for i, d := range rows {
		res[i] = json.RawMessage(d.Body)
	}
	return res
}

// DecodeAll 将一组原始文档解码为 T
func DecodeAll[T any](raws []json.RawMessage) ([]*T, error) {
	res := make([]*T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		res = append(res, &v)
	}
	return res, nil
}
