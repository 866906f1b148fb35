package model

import "errors"

// 领域错误，业务层返回哨兵错误，HTTP/GraphQL适配层用errors.Is翻译成响应码
var (
	ErrEventNotFound = errors.New("事件不存在")
	ErrUserNotFound  = errors.New("用户不存在")

	// ErrBidTooLow 出价不高于当前排名的在位出价，拒绝且不产生任何变更
	ErrBidTooLow = errors.New("出价不足以替换当前排名")

	// ErrInvalidRank 排名非法（小于1或超过当前事件总数）
	ErrInvalidRank = errors.New("invalid rank")

	ErrInvalidIndex = errors.New("invalid index")
	ErrInvalidParam = errors.New("invalid request param")

	// ErrInconsistent 数据不一致（如排名记录指向已删除的事件），读取侧直接失败
	ErrInconsistent = errors.New("数据不一致")
)
