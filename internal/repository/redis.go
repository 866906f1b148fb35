package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lvdashuaibi/hotrank/config"
	"github.com/lvdashuaibi/hotrank/internal/model"
)

const (
	// Redis键前缀
	RankedListKey        = "hotrank:list"
	RankedListVersionKey = "hotrank:list:version"
	UserKey              = "hotrank:user:"

	// 缓存有效期
	RankedListTTL = 10 * time.Second
	UserTTL       = time.Hour

	// Lua脚本：删除榜单缓存并递增版本号，两步原子完成
	InvalidateRankedListScript = `
		redis.call('DEL', KEYS[1])
		local version = redis.call('INCR', KEYS[2])
		return version
	`
)

type RedisRepository struct {
	client       *redis.Client
	scriptHashes map[string]string // 存储脚本SHA1哈希值
}

func NewRedisRepository() (*RedisRepository, error) {
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{
		Addr:         config.AppConfig.Redis.DataAddress,
		Password:     config.AppConfig.Redis.Password,
		DB:           config.AppConfig.Redis.DB,
		PoolSize:     config.AppConfig.Redis.PoolSize,
		MaxRetries:   config.AppConfig.Redis.MaxRetries,
		DialTimeout:  config.AppConfig.Redis.Timeout,
		ReadTimeout:  config.AppConfig.Redis.Timeout,
		WriteTimeout: config.AppConfig.Redis.Timeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis数据节点连接测试失败: %w", err)
	}

	repo := &RedisRepository{
		client:       client,
		scriptHashes: make(map[string]string),
	}

	if err := repo.preloadScripts(ctx); err != nil {
		return nil, fmt.Errorf("预加载Lua脚本失败: %w", err)
	}

	return repo, nil
}

// preloadScripts 预加载所有Lua脚本
func (r *RedisRepository) preloadScripts(ctx context.Context) error {
	sha1, err := r.client.ScriptLoad(ctx, InvalidateRankedListScript).Result()
	if err != nil {
		return fmt.Errorf("加载榜单失效脚本失败: %w", err)
	}
	r.scriptHashes["invalidateRankedList"] = sha1
	return nil
}

// GetRankedList 从缓存获取合成后的榜单
func (r *RedisRepository) GetRankedList(ctx context.Context) ([]model.EventView, bool, error) {
	data, err := r.client.Get(ctx, RankedListKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil // 缓存未命中
		}
		return nil, false, fmt.Errorf("获取榜单缓存失败: %w", err)
	}

	var views []model.EventView
	if err := json.Unmarshal([]byte(data), &views); err != nil {
		return nil, false, fmt.Errorf("解析榜单缓存失败: %w", err)
	}

	return views, true, nil
}

// SetRankedList 写入榜单缓存
func (r *RedisRepository) SetRankedList(ctx context.Context, views []model.EventView) error {
	data, err := json.Marshal(views)
	if err != nil {
		return fmt.Errorf("序列化榜单失败: %w", err)
	}

	if err := r.client.Set(ctx, RankedListKey, data, RankedListTTL).Err(); err != nil {
		return fmt.Errorf("设置榜单缓存失败: %w", err)
	}

	return nil
}

// InvalidateRankedList 使用预加载的Lua脚本原子地失效榜单缓存
func (r *RedisRepository) InvalidateRankedList(ctx context.Context) error {
	sha1, ok := r.scriptHashes["invalidateRankedList"]
	if !ok {
		return fmt.Errorf("脚本未预加载")
	}

	keys := []string{RankedListKey, RankedListVersionKey}
	err := r.client.EvalSha(ctx, sha1, keys).Err()
	if err != nil {
		// 脚本可能因Redis重启丢失，重新加载后再执行一次
		if err.Error() == "NOSCRIPT No matching script. Please use EVAL." {
			sha1, err = r.client.ScriptLoad(ctx, InvalidateRankedListScript).Result()
			if err != nil {
				return fmt.Errorf("重新加载榜单失效脚本失败: %w", err)
			}
			r.scriptHashes["invalidateRankedList"] = sha1

			if err = r.client.EvalSha(ctx, sha1, keys).Err(); err != nil {
				return fmt.Errorf("执行榜单失效脚本失败: %w", err)
			}
			return nil
		}
		return fmt.Errorf("执行榜单失效脚本失败: %w", err)
	}

	return nil
}

// GetUser 从缓存获取用户
func (r *RedisRepository) GetUser(ctx context.Context, id int64) (*model.User, bool, error) {
	key := UserKey + strconv.FormatInt(id, 10)
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("获取用户缓存失败: %w", err)
	}

	var user model.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, false, fmt.Errorf("解析用户缓存失败: %w", err)
	}

	return &user, true, nil
}

// SetUser 设置用户缓存
func (r *RedisRepository) SetUser(ctx context.Context, user *model.User) error {
	key := UserKey + strconv.FormatInt(user.ID, 10)
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("序列化用户失败: %w", err)
	}

	if err := r.client.Set(ctx, key, data, UserTTL).Err(); err != nil {
		return fmt.Errorf("设置用户缓存失败: %w", err)
	}

	return nil
}

// DeleteUser 删除用户缓存
func (r *RedisRepository) DeleteUser(ctx context.Context, id int64) error {
	key := UserKey + strconv.FormatInt(id, 10)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("删除用户缓存失败: %w", err)
	}
	return nil
}

// Close 关闭Redis连接
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
