package lock

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lvdashuaibi/hotrank/config"
)

// 释放锁时校验token，避免误删他人持有的锁
const releaseScript = `
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`

// RedLock Redlock算法实现的分布式锁，etcd不可用时的备选方案
type RedLock struct {
	clients     []*redis.Client
	mu          sync.Mutex
	locks       map[string]string // key是锁名，value是token值
	retries     int
	clusterSize int
}

// NewRedLock 创建新的分布式锁客户端
func NewRedLock() (*RedLock, error) {
	ctx := context.Background()

	// 创建多个独立的Redis客户端
	var clients []*redis.Client

	for _, addr := range config.AppConfig.Redis.LockAddresses {
		client := redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     config.AppConfig.Redis.Password,
			DB:           config.AppConfig.Redis.DB,
			PoolSize:     config.AppConfig.Redis.PoolSize,
			MaxRetries:   config.AppConfig.Redis.MaxRetries,
			DialTimeout:  config.AppConfig.Redis.Timeout,
			ReadTimeout:  config.AppConfig.Redis.Timeout,
			WriteTimeout: config.AppConfig.Redis.Timeout,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("Redis锁节点 %s 连接测试失败: %v", addr, err)
			for _, c := range clients {
				c.Close()
			}
			return nil, fmt.Errorf("Redis锁节点 %s 连接测试失败: %w", addr, err)
		}

		clients = append(clients, client)
	}

	return &RedLock{
		clients:     clients,
		locks:       make(map[string]string),
		retries:     config.AppConfig.Lock.RetryCount,
		clusterSize: len(config.AppConfig.Redis.LockAddresses),
	}, nil
}

// AcquireLock 获取分布式锁
func (r *RedLock) AcquireLock(lockName string, timeout time.Duration) (bool, error) {
	ctx := context.Background()
	token := fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Unix())

	// Redlock算法: 在多数节点上获取锁才算成功
	for attempt := 0; attempt < r.retries; attempt++ {
		success := 0
		start := time.Now()

		for i, client := range r.clients {
			ok, err := client.SetNX(ctx, lockName, token, timeout).Result()
			if err != nil {
				log.Printf("在节点 %s 获取锁 %s 失败: %v", config.AppConfig.Redis.LockAddresses[i], lockName, err)
				continue
			}
			if ok {
				success++
			}
		}

		elapsed := time.Since(start)

		// 超过半数节点成功且总耗时未超过锁有效期
		if success > r.clusterSize/2 && elapsed < timeout {
			r.mu.Lock()
			r.locks[lockName] = token
			r.mu.Unlock()
			return true, nil
		}

		// 获取失败，释放已设置的节点后重试
		r.releaseOnAll(ctx, lockName, token)
		time.Sleep(time.Duration(50+attempt*50) * time.Millisecond)
	}

	return false, nil
}

// RefreshLock 刷新锁的过期时间
func (r *RedLock) RefreshLock(lockName string, timeout time.Duration) (bool, error) {
	r.mu.Lock()
	token, ok := r.locks[lockName]
	r.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("未持有锁 %s", lockName)
	}

	ctx := context.Background()
	success := 0
	for _, client := range r.clients {
		val, err := client.Get(ctx, lockName).Result()
		if err != nil || val != token {
			continue
		}
		if err := client.Expire(ctx, lockName, timeout).Err(); err == nil {
			success++
		}
	}

	return success > r.clusterSize/2, nil
}

// ReleaseLock 释放分布式锁
func (r *RedLock) ReleaseLock(lockName string) error {
	r.mu.Lock()
	token, ok := r.locks[lockName]
	if ok {
		delete(r.locks, lockName)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}

	r.releaseOnAll(context.Background(), lockName, token)
	return nil
}

// ReleaseAllLocks 释放所有持有的锁
func (r *RedLock) ReleaseAllLocks() {
	r.mu.Lock()
	names := make([]string, 0, len(r.locks))
	for lockName := range r.locks {
		names = append(names, lockName)
	}
	r.mu.Unlock()

	for _, lockName := range names {
		r.ReleaseLock(lockName)
	}
}

// Close 关闭所有Redis客户端
func (r *RedLock) Close() error {
	r.ReleaseAllLocks()
	for _, client := range r.clients {
		client.Close()
	}
	return nil
}

// releaseOnAll 在所有节点上用token校验后删除锁
func (r *RedLock) releaseOnAll(ctx context.Context, lockName, token string) {
	for i, client := range r.clients {
		if err := client.Eval(ctx, releaseScript, []string{lockName}, token).Err(); err != nil && err != redis.Nil {
			log.Printf("在节点 %s 释放锁 %s 失败: %v", config.AppConfig.Redis.LockAddresses[i], lockName, err)
		}
	}
}
