package model

import "time"

// Document 文档存储中的一条记录，(collection, id) 唯一
type Document struct {
	Collection string `gorm:"primaryKey;type:varchar(64)"`
	ID         string `gorm:"primaryKey;type:varchar(128)"`
	// 分组键（如私信的会话 ID），用于按组列举
	Partition string `gorm:"column:partition_key;type:varchar(160);index:idx_doc_partition"`
	Body      string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Document) TableName() string { return "documents" }
