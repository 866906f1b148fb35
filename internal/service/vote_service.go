package service

import (
	"context"
	"log"
	"time"

	"github.com/lvdashuaibi/hotrank/config"
	"github.com/lvdashuaibi/hotrank/internal/model"
	"github.com/lvdashuaibi/hotrank/internal/repository"
)

// Publisher 变更事件发布接口，由Kafka生产者实现
type Publisher interface {
	SendChangeEvent(ctx context.Context, event *model.ChangeEvent) error
}

// VoteService 投票账本与事件/用户管理服务
type VoteService struct {
	eventRepo repository.EventRepository
	userRepo  repository.UserRepository
	voteRepo  repository.VoteRepository
	cache     repository.Cache
	producer  Publisher
}

func NewVoteService(
	eventRepo repository.EventRepository,
	userRepo repository.UserRepository,
	voteRepo repository.VoteRepository,
	cache repository.Cache,
	producer Publisher,
) *VoteService {
	return &VoteService{
		eventRepo: eventRepo,
		userRepo:  userRepo,
		voteRepo:  voteRepo,
		cache:     cache,
		producer:  producer,
	}
}

// CastVote 投票。流水、事件票数、用户余额在同一事务内变更。
// 不校验余额是否足够，超额投票会把余额扣成负数。
func (s *VoteService) CastVote(ctx context.Context, eventID int64, request *model.VoteRequest) (*model.VoteRecord, error) {
	_, found, err := s.eventRepo.FindEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, model.ErrEventNotFound
	}

	_, found, err = s.userRepo.FindUser(ctx, request.UserID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, model.ErrUserNotFound
	}

	votedAt := request.Time
	if votedAt.IsZero() {
		votedAt = time.Now()
	}

	record := &model.VoteRecord{
		UserID:  request.UserID,
		EventID: eventID,
		Num:     request.VoteNum,
		VotedAt: votedAt,
	}
	if err := s.voteRepo.CastVote(ctx, record); err != nil {
		return nil, err
	}

	s.publishChange(ctx, &model.ChangeEvent{
		Type:       model.ChangeTypeVote,
		EventID:    eventID,
		UserID:     request.UserID,
		OccurredAt: votedAt,
	})

	return record, nil
}

// Submit 新增事件，票数从0开始
func (s *VoteService) Submit(ctx context.Context, request *model.RsEventRequest) (*model.RsEvent, error) {
	_, found, err := s.userRepo.FindUser(ctx, request.UserID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, model.ErrUserNotFound
	}

	event := &model.RsEvent{
		EventName: request.EventName,
		Keyword:   request.Keyword,
		VoteNum:   0,
		UserID:    request.UserID,
	}
	if err := s.eventRepo.CreateEvent(ctx, event); err != nil {
		return nil, err
	}

	s.publishChange(ctx, &model.ChangeEvent{
		Type:       model.ChangeTypeEvent,
		EventID:    event.ID,
		UserID:     request.UserID,
		OccurredAt: time.Now(),
	})

	return event, nil
}

// Register 注册新用户，初始可用票数来自配置
func (s *VoteService) Register(ctx context.Context, request *model.RegisterRequest) (*model.User, error) {
	user := &model.User{
		UserName: request.UserName,
		Gender:   request.Gender,
		Email:    request.Email,
		Phone:    request.Phone,
		Age:      request.Age,
		VoteNum:  config.AppConfig.User.InitialVoteNum,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser 查询用户，先走缓存
func (s *VoteService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, found, err := s.cache.GetUser(ctx, id)
	if err != nil {
		log.Printf("获取用户 %d 缓存失败: %v", id, err)
	}
	if found && user != nil {
		return user, nil
	}

	user, found, err = s.userRepo.FindUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, model.ErrUserNotFound
	}

	if err := s.cache.SetUser(ctx, user); err != nil {
		log.Printf("更新用户 %d 缓存失败: %v", id, err)
	}

	return user, nil
}

// DeleteUser 删除用户，连带删除其名下事件
func (s *VoteService) DeleteUser(ctx context.Context, id int64) error {
	_, found, err := s.userRepo.FindUser(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return model.ErrUserNotFound
	}

	if err := s.userRepo.DeleteUser(ctx, id); err != nil {
		return err
	}

	s.publishChange(ctx, &model.ChangeEvent{
		Type:       model.ChangeTypeUser,
		UserID:     id,
		OccurredAt: time.Now(),
	})

	return nil
}

// VotesOf 查询事件的投票流水
func (s *VoteService) VotesOf(ctx context.Context, eventID int64) ([]*model.VoteRecord, error) {
	_, found, err := s.eventRepo.FindEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, model.ErrEventNotFound
	}
	return s.voteRepo.VotesOfEvent(ctx, eventID)
}

// HandleChangeEvent 处理Kafka变更事件（消费者使用），按类型清理缓存
func (s *VoteService) HandleChangeEvent(event *model.ChangeEvent) error {
	ctx := context.Background()

	if err := s.cache.InvalidateRankedList(ctx); err != nil {
		return err
	}

	if event.UserID > 0 && (event.Type == model.ChangeTypeVote || event.Type == model.ChangeTypeUser) {
		if err := s.cache.DeleteUser(ctx, event.UserID); err != nil {
			log.Printf("删除用户 %d 缓存失败: %v", event.UserID, err)
		}
	}

	return nil
}

// publishChange 发布变更事件。发送失败时退化为直接清理缓存，
// 保证读取侧不会长期看到旧榜单。
func (s *VoteService) publishChange(ctx context.Context, event *model.ChangeEvent) {
	if err := s.producer.SendChangeEvent(ctx, event); err != nil {
		log.Printf("发送变更事件到Kafka失败: %v", err)
		if err := s.cache.InvalidateRankedList(ctx); err != nil {
			log.Printf("清理榜单缓存失败: %v", err)
		}
		if event.UserID > 0 {
			if err := s.cache.DeleteUser(ctx, event.UserID); err != nil {
				log.Printf("删除用户 %d 缓存失败: %v", event.UserID, err)
			}
		}
	}
}
