package lock

import (
	"fmt"
	"time"
)

// Lock 分布式锁接口。购买排名时按排名加锁，
// 保证同一排名的判定在多实例间串行执行。
type Lock interface {
	// AcquireLock 获取分布式锁
	// 返回值：bool表示是否成功获取锁，error表示获取过程中的错误
	AcquireLock(lockName string, timeout time.Duration) (bool, error)

	// RefreshLock 刷新锁的过期时间
	RefreshLock(lockName string, timeout time.Duration) (bool, error)

	// ReleaseLock 释放分布式锁
	ReleaseLock(lockName string) error

	// ReleaseAllLocks 释放所有持有的锁
	ReleaseAllLocks()

	// Close 关闭分布式锁客户端
	Close() error
}

// RankLockName 排名锁的键名
func RankLockName(rank int) string {
	return fmt.Sprintf("hotrank:trade:rank:%d", rank)
}
