package service

import (
	"context"
	"log"
	"sort"

	"github.com/lvdashuaibi/hotrank/internal/model"
	"github.com/lvdashuaibi/hotrank/internal/repository"
)

// RankService 榜单合成服务。把按票数排序的自由事件和
// 购买排名固定位置的事件合成为最终榜单。
type RankService struct {
	tradeRepo repository.TradeRepository
	cache     repository.Cache
}

func NewRankService(tradeRepo repository.TradeRepository, cache repository.Cache) *RankService {
	return &RankService{
		tradeRepo: tradeRepo,
		cache:     cache,
	}
}

// RankedList 获取榜单。start/end为1起始的闭区间，
// 两者缺一则返回完整榜单。
func (s *RankService) RankedList(ctx context.Context, start, end *int) ([]model.EventView, error) {
	views, err := s.assembled(ctx)
	if err != nil {
		return nil, err
	}

	if start == nil || end == nil {
		return views, nil
	}

	if *start < 1 || *end < *start || *end > len(views) {
		return nil, model.ErrInvalidParam
	}

	return views[*start-1 : *end], nil
}

// EventAt 获取榜单上指定位置的事件，index从1开始
func (s *RankService) EventAt(ctx context.Context, index int) (model.EventView, error) {
	views, err := s.assembled(ctx)
	if err != nil {
		return model.EventView{}, err
	}

	if index < 1 || index > len(views) {
		return model.EventView{}, model.ErrInvalidIndex
	}

	return views[index-1], nil
}

// assembled 返回完整榜单，缓存命中直接用缓存，
// 未命中则从数据库快照合成并回填缓存
func (s *RankService) assembled(ctx context.Context) ([]model.EventView, error) {
	views, found, err := s.cache.GetRankedList(ctx)
	if err != nil {
		log.Printf("获取榜单缓存失败: %v", err)
	}
	if found {
		return views, nil
	}

	events, trades, err := s.tradeRepo.RankSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	views, err = Assemble(events, trades)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetRankedList(ctx, views); err != nil {
		log.Printf("回填榜单缓存失败: %v", err)
	}

	return views, nil
}

// Assemble 合成榜单。
// 被排名记录占据的事件固定在其购买的位置，其余事件按票数降序
// 依次填进空位；票数相同按事件ID升序（先提交的在前）。
// events要求按ID升序传入。
//
// 排名可能因事件被淘汰而超出当前事件总数，此时先按最大排名
// 开缓冲区，填完后压缩掉空位，结果长度恒等于事件总数。
func Assemble(events []*model.RsEvent, trades []*model.Trade) ([]model.EventView, error) {
	byID := make(map[int64]*model.RsEvent, len(events))
	for _, event := range events {
		byID[event.ID] = event
	}

	pinned := make(map[int64]bool, len(trades))
	size := len(events)
	for _, trade := range trades {
		if _, ok := byID[trade.EventID]; !ok {
			// 排名记录指向已删除的事件，读取侧直接失败
			return nil, model.ErrInconsistent
		}
		pinned[trade.EventID] = true
		if trade.Rank > size {
			size = trade.Rank
		}
	}

	free := make([]*model.RsEvent, 0, len(events)-len(pinned))
	for _, event := range events {
		if !pinned[event.ID] {
			free = append(free, event)
		}
	}
	sort.SliceStable(free, func(i, j int) bool {
		return free[i].VoteNum > free[j].VoteNum
	})

	// 两遍填充：先放固定位置，再按序补空位
	buffer := make([]*model.RsEvent, size)
	for _, trade := range trades {
		buffer[trade.Rank-1] = byID[trade.EventID]
	}

	next := 0
	for i := range buffer {
		if buffer[i] == nil && next < len(free) {
			buffer[i] = free[next]
			next++
		}
	}

	views := make([]model.EventView, 0, len(events))
	for _, event := range buffer {
		if event != nil {
			views = append(views, event.View())
		}
	}

	return views, nil
}
