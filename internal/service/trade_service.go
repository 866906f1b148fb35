package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lvdashuaibi/hotrank/config"
	"github.com/lvdashuaibi/hotrank/internal/lock"
	"github.com/lvdashuaibi/hotrank/internal/model"
	"github.com/lvdashuaibi/hotrank/internal/repository"
)

// TradeService 排名购买服务。维护"每个排名最多一条购买记录"的
// 约束：排名空缺直接买入，在位出价更低则淘汰在位事件并原地覆盖，
// 否则拒绝且不产生任何变更。
type TradeService struct {
	eventRepo repository.EventRepository
	tradeRepo repository.TradeRepository
	cache     repository.Cache
	rankLock  lock.Lock
	producer  Publisher
}

func NewTradeService(
	eventRepo repository.EventRepository,
	tradeRepo repository.TradeRepository,
	cache repository.Cache,
	rankLock lock.Lock,
	producer Publisher,
) *TradeService {
	return &TradeService{
		eventRepo: eventRepo,
		tradeRepo: tradeRepo,
		cache:     cache,
		rankLock:  rankLock,
		producer:  producer,
	}
}

// Buy 为事件购买指定排名
func (s *TradeService) Buy(ctx context.Context, eventID int64, request *model.TradeRequest) (*model.TradeResult, error) {
	if request.Amount < 1 || request.Rank < 1 {
		return nil, model.ErrInvalidParam
	}

	_, found, err := s.eventRepo.FindEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, model.ErrEventNotFound
	}

	// 排名不允许超过当前事件总数
	count, err := s.eventRepo.CountEvents(ctx)
	if err != nil {
		return nil, err
	}
	if request.Rank > count {
		return nil, model.ErrInvalidRank
	}

	// 按排名加分布式锁，多实例下同一排名的判定串行执行
	lockName := lock.RankLockName(request.Rank)
	acquired, err := s.rankLock.AcquireLock(lockName, config.AppConfig.Lock.Timeout)
	if err != nil {
		return nil, fmt.Errorf("获取排名 %d 的锁失败: %w", request.Rank, err)
	}
	if !acquired {
		return nil, fmt.Errorf("排名 %d 正在被其他请求处理", request.Rank)
	}
	defer func() {
		if err := s.rankLock.ReleaseLock(lockName); err != nil {
			log.Printf("释放排名 %d 的锁失败: %v", request.Rank, err)
		}
	}()

	result, err := s.tradeRepo.PlaceTrade(ctx, request.Rank, request.Amount, eventID)
	if err != nil {
		return nil, err
	}

	if result.EvictedEventID > 0 {
		log.Printf("排名 %d 发生淘汰: 事件 %d 被事件 %d 以出价 %d 替换",
			result.Rank, result.EvictedEventID, eventID, request.Amount)
	}

	s.publishTrade(ctx, result)

	return result, nil
}

// publishTrade 发布购买变更事件，失败时退化为直接清理榜单缓存
func (s *TradeService) publishTrade(ctx context.Context, result *model.TradeResult) {
	event := &model.ChangeEvent{
		Type:       model.ChangeTypeTrade,
		EventID:    result.EventID,
		Rank:       result.Rank,
		OccurredAt: time.Now(),
	}
	if err := s.producer.SendChangeEvent(ctx, event); err != nil {
		log.Printf("发送购买变更事件到Kafka失败: %v", err)
		if err := s.cache.InvalidateRankedList(ctx); err != nil {
			log.Printf("清理榜单缓存失败: %v", err)
		}
	}
}
