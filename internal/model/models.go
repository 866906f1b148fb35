package model

import (
	"time"
)

// User 用户模型，VoteNum为剩余可用票数
type User struct {
	ID        int64     `json:"id"`
	UserName  string    `json:"userName"`
	Gender    string    `json:"gender"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Age       int       `json:"age"`
	VoteNum   int       `json:"voteNum"`
	CreatedAt time.Time `json:"createdAt"`
}

// RsEvent 热搜事件模型
type RsEvent struct {
	ID        int64     `json:"id"`
	EventName string    `json:"eventName"`
	Keyword   string    `json:"keyword"`
	VoteNum   int       `json:"voteNum"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventView 对外展示的事件视图，不携带完整用户信息
type EventView struct {
	EventName string `json:"eventName"`
	Keyword   string `json:"keyword"`
	VoteNum   int    `json:"voteNum"`
	UserID    int64  `json:"userId"`
}

// View 生成事件的对外视图
func (e *RsEvent) View() EventView {
	return EventView{
		EventName: e.EventName,
		Keyword:   e.Keyword,
		VoteNum:   e.VoteNum,
		UserID:    e.UserID,
	}
}

// VoteRecord 投票流水，只增不改
type VoteRecord struct {
	ID      int64     `json:"id"`
	UserID  int64     `json:"userId"`
	EventID int64     `json:"eventId"`
	Num     int       `json:"num"`
	VotedAt time.Time `json:"votedAt"`
}

// Trade 排名购买记录，每个排名最多一条
type Trade struct {
	ID      int64 `json:"id"`
	Rank    int   `json:"rank"`
	Amount  int   `json:"amount"`
	EventID int64 `json:"eventId"`
}

// 变更事件类型
const (
	ChangeTypeVote  = "vote"
	ChangeTypeTrade = "trade"
	ChangeTypeEvent = "event"
	ChangeTypeUser  = "user"
)

// ChangeEvent Kafka变更事件，消费侧据此清理缓存
type ChangeEvent struct {
	Type       string    `json:"type"`
	EventID    int64     `json:"eventId,omitempty"`
	UserID     int64     `json:"userId,omitempty"`
	Rank       int       `json:"rank,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// RsEventRequest 新增事件请求
type RsEventRequest struct {
	EventName string `json:"eventName" binding:"required"`
	Keyword   string `json:"keyword" binding:"required"`
	UserID    int64  `json:"userId" binding:"required"`
}

// VoteRequest 投票请求
type VoteRequest struct {
	UserID  int64     `json:"userId" binding:"required"`
	VoteNum int       `json:"voteNum" binding:"required,gt=0"`
	Time    time.Time `json:"time"`
}

// TradeRequest 购买排名请求
type TradeRequest struct {
	Amount int `json:"amount" binding:"required,gt=0"`
	Rank   int `json:"rank" binding:"required,gt=0"`
}

// RegisterRequest 用户注册请求
type RegisterRequest struct {
	UserName string `json:"userName" binding:"required,max=8"`
	Gender   string `json:"gender" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"required,len=11,startswith=1"`
	Age      int    `json:"age" binding:"required,gte=18,lte=100"`
}

// TradeResult 购买排名结果
type TradeResult struct {
	Rank    int   `json:"rank"`
	Amount  int   `json:"amount"`
	EventID int64 `json:"eventId"`
	// EvictedEventID 被挤掉并删除的事件ID，0表示本次没有发生淘汰
	EvictedEventID int64 `json:"evictedEventId,omitempty"`
}
