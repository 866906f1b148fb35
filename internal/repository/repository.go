package repository

import (
	"context"

	"github.com/lvdashuaibi/hotrank/internal/model"
)

// EventRepository 事件存储
type EventRepository interface {
	// FindEvent 查找事件，第二个返回值表示是否存在
	FindEvent(ctx context.Context, id int64) (*model.RsEvent, bool, error)
	AllEvents(ctx context.Context) ([]*model.RsEvent, error)
	CountEvents(ctx context.Context) (int, error)
	// CreateEvent 保存新事件并回填自增ID
	CreateEvent(ctx context.Context, event *model.RsEvent) error
}

// UserRepository 用户存储
type UserRepository interface {
	FindUser(ctx context.Context, id int64) (*model.User, bool, error)
	CreateUser(ctx context.Context, user *model.User) error
	// DeleteUser 删除用户并连带删除其名下事件
	DeleteUser(ctx context.Context, id int64) error
}

// VoteRepository 投票账本存储
type VoteRepository interface {
	// CastVote 单事务完成：写入投票流水、事件票数加n、用户余额减n。
	// 三个写入要么全部生效要么全部回滚。
	CastVote(ctx context.Context, record *model.VoteRecord) error
	VotesOfEvent(ctx context.Context, eventID int64) ([]*model.VoteRecord, error)
}

// TradeRepository 排名购买存储
type TradeRepository interface {
	// PlaceTrade 单事务完成排名购买判定：
	// 排名无在位记录则插入；在位出价不低于新出价返回ErrBidTooLow；
	// 否则删除在位事件并原地覆盖排名记录。判定期间持有排名行锁。
	PlaceTrade(ctx context.Context, rank, amount int, eventID int64) (*model.TradeResult, error)
	// RankSnapshot 在同一事务内读取全部事件与全部排名记录，
	// 保证榜单合成看到的是一致性快照
	RankSnapshot(ctx context.Context) ([]*model.RsEvent, []*model.Trade, error)
}

// Cache 读路径缓存
type Cache interface {
	GetRankedList(ctx context.Context) ([]model.EventView, bool, error)
	SetRankedList(ctx context.Context, views []model.EventView) error
	InvalidateRankedList(ctx context.Context) error
	GetUser(ctx context.Context, id int64) (*model.User, bool, error)
	SetUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id int64) error
}
