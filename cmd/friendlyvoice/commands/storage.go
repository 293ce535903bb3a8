package commands

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/friendlyvoice/config"
	"github.com/d60-Lab/friendlyvoice/internal/repository"
	"github.com/d60-Lab/friendlyvoice/pkg/database"
	"github.com/d60-Lab/friendlyvoice/pkg/logger"
)

// storage 进程级连接：数据库与可选的 Redis
type storage struct {
	db    *gorm.DB
	redis *redis.Client
	docs  repository.DocumentRepository
	creds repository.CredentialRepository
}

// openStorage 打开数据库并迁移表结构；镜像驱动为 redis 时同时连接 Redis
func openStorage(cfg *config.Config) (*storage, error) {
	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		closeDB(db)
		return nil, err
	}
	s := &storage{
		db:    db,
		docs:  repository.NewDocumentRepository(db),
		creds: repository.NewCredentialRepository(db),
	}
	if cfg.Mirror.Driver == "redis" {
		client, err := database.InitRedis(cfg)
		if err != nil {
			closeDB(db)
			return nil, fmt.Errorf("mirror: %w", err)
		}
		s.redis = client
	}
	return s, nil
}

func (s *storage) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logger.Warn("close redis", zap.Error(err))
		}
	}
	closeDB(s.db)
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("close database", zap.Error(err))
	}
}
