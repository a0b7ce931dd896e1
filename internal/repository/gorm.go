package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cryptsignal-chat/internal/config"
	"cryptsignal-chat/internal/model"
)

// OpenDatabase 根据配置打开数据库连接并执行迁移
// 参数:
//   - cfg: 数据库配置，driver 为 mysql 或 sqlite
//   - verbose: 是否输出 SQL 日志
func OpenDatabase(cfg config.DatabaseConfig, verbose bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			cfg.Username,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Database,
			cfg.Charset,
		)
		dialector = mysql.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}

	gormLogger := logger.Default.LogMode(logger.Silent)
	if verbose {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Driver == "mysql" {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)
	} else {
		// SQLite 单写者
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&model.Conversation{}, &model.Message{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return db, nil
}

// GormStore 基于 GORM 的持久化存储
type GormStore struct {
	db    *gorm.DB
	clock clockwork.Clock
}

// NewGormStore 创建 GormStore 实例
func NewGormStore(db *gorm.DB, clock clockwork.Clock) *GormStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &GormStore{db: db, clock: clock}
}

// CreateConversation 创建会话
func (r *GormStore) CreateConversation(ctx context.Context, title string) (*model.Conversation, error) {
	conv := &model.Conversation{Title: title, CreatedAt: r.clock.Now()}
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation 根据 ID 获取会话
func (r *GormStore) GetConversation(ctx context.Context, id int64) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).First(&conv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// ListConversations 列出会话，按创建时间倒序
func (r *GormStore) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var list []model.Conversation
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&list).Error
	return list, err
}

// UpdateTitle 更新会话标题
func (r *GormStore) UpdateTitle(ctx context.Context, id int64, title string) error {
	// MySQL 在值未变化时 RowsAffected 为 0，先确认会话存在
	if _, err := r.GetConversation(ctx, id); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", id).
		Update("title", title).Error
}

// AppendMessage 在事务中追加消息
// 创建时间取 max(当前时间, 上一条消息时间)，相同时间由自增 ID 决定顺序
func (r *GormStore) AppendMessage(ctx context.Context, conversationID int64, role model.MessageRole, content string) (*model.Message, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	msg := &model.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv model.Conversation
		if err := tx.Select("id").First(&conv, conversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConversationNotFound
			}
			return err
		}

		now := r.clock.Now()
		var last model.Message
		err := tx.Where("conversation_id = ?", conversationID).
			Order("created_at DESC").
			Order("id DESC").
			Limit(1).
			Find(&last).Error
		if err != nil {
			return err
		}
		if last.ID != 0 && now.Before(last.CreatedAt) {
			now = last.CreatedAt
		}
		msg.CreatedAt = now

		return tx.Create(msg).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages 获取会话的所有消息
// 按创建时间正序，相同时间按插入顺序
func (r *GormStore) ListMessages(ctx context.Context, conversationID int64) ([]model.Message, error) {
	if _, err := r.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}

// DeleteConversation 删除会话及其消息
func (r *GormStore) DeleteConversation(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Conversation{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConversationNotFound
		}
		return nil
	})
}

// DeleteMessages 清空会话的所有消息
func (r *GormStore) DeleteMessages(ctx context.Context, conversationID int64) error {
	if _, err := r.GetConversation(ctx, conversationID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Delete(&model.Message{}).Error
}
