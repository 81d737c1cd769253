package safety

import (
	"context"
	"fmt"
	"sync"
	"time"

	"backend/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// Decision 限额判定结果
type Decision struct {
	Allowed           bool   `json:"allowed"`
	RemainingToday    int    `json:"remaining_today"`
	RemainingThisWeek int    `json:"remaining_this_week"`
	Reason            string `json:"reason,omitempty"`
}

// Controller 渠道安全限额控制器
// 每次渠道派发前必须咨询，与编排器自身的节奏控制相互独立
type Controller interface {
	CanPerformAction(ctx context.Context, workspaceID, actionType string) (*Decision, error)
	RecordAction(ctx context.Context, workspaceID, actionType string) error
}

// Limits 单渠道的日/周上限，0 表示不限制
type Limits struct {
	Daily  int
	Weekly int
}

// 各渠道默认 warmup 限额（LinkedIn 动作远低于邮件）
var defaultLimits = map[string]Limits{
	"email":               {Daily: 500, Weekly: 2500},
	"sms":                 {Daily: 200, Weekly: 1000},
	"linkedin_message":    {Daily: 50, Weekly: 250},
	"linkedin_connection": {Daily: 25, Weekly: 100},
	"phone":               {Daily: 100, Weekly: 400},
	"voicemail":           {Daily: 100, Weekly: 400},
}

// RedisController 基于 Redis 计数的限额控制器
type RedisController struct {
	rdb    redis.UniversalClient
	limits map[string]Limits
}

// NewRedisController 创建 Redis 限额控制器
// limits 为空时使用默认 warmup 限额
func NewRedisController(rdb redis.UniversalClient, limits map[string]Limits) *RedisController {
	if len(limits) == 0 {
		limits = defaultLimits
	}
	return &RedisController{rdb: rdb, limits: limits}
}

func (c *RedisController) limitsFor(actionType string) Limits {
	if l, ok := c.limits[actionType]; ok {
		return l
	}
	return Limits{}
}

func dayKey(workspaceID, actionType string, now time.Time) string {
	return fmt.Sprintf("safety:%s:%s:day:%s", workspaceID, actionType, now.UTC().Format("2006-01-02"))
}

func weekKey(workspaceID, actionType string, now time.Time) string {
	year, week := now.UTC().ISOWeek()
	return fmt.Sprintf("safety:%s:%s:week:%d-%02d", workspaceID, actionType, year, week)
}

// CanPerformAction 判断当前时点是否允许执行动作
func (c *RedisController) CanPerformAction(ctx context.Context, workspaceID, actionType string) (*Decision, error) {
	limits := c.limitsFor(actionType)
	now := time.Now()

	dayCount, err := c.rdb.Get(ctx, dayKey(workspaceID, actionType, now)).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("读取日计数失败: %w", err)
	}
	weekCount, err := c.rdb.Get(ctx, weekKey(workspaceID, actionType, now)).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("读取周计数失败: %w", err)
	}

	decision := &Decision{Allowed: true}
	if limits.Daily > 0 {
		decision.RemainingToday = limits.Daily - dayCount
		if dayCount >= limits.Daily {
			decision.Allowed = false
			decision.Reason = fmt.Sprintf("已达到 %s 的每日限额 (%d)", actionType, limits.Daily)
		}
	}
	if limits.Weekly > 0 {
		decision.RemainingThisWeek = limits.Weekly - weekCount
		if weekCount >= limits.Weekly {
			decision.Allowed = false
			decision.Reason = fmt.Sprintf("已达到 %s 的每周限额 (%d)", actionType, limits.Weekly)
		}
	}

	if !decision.Allowed {
		metrics.SafetyBlockedTotal.WithLabelValues(actionType, "limit_reached").Inc()
	}
	return decision, nil
}

// RecordAction 记录一次已执行动作
func (c *RedisController) RecordAction(ctx context.Context, workspaceID, actionType string) error {
	now := time.Now()
	pipe := c.rdb.TxPipeline()

	dk := dayKey(workspaceID, actionType, now)
	wk := weekKey(workspaceID, actionType, now)
	pipe.Incr(ctx, dk)
	pipe.Expire(ctx, dk, 48*time.Hour)
	pipe.Incr(ctx, wk)
	pipe.Expire(ctx, wk, 8*24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("记录动作计数失败: %w", err)
	}
	return nil
}

// MemoryController 进程内限额控制器
// Redis 不可用时的回退实现，也用于测试
type MemoryController struct {
	mu     sync.Mutex
	limits map[string]Limits
	day    map[string]int
	week   map[string]int
}

// NewMemoryController 创建内存限额控制器
func NewMemoryController(limits map[string]Limits) *MemoryController {
	if len(limits) == 0 {
		limits = defaultLimits
	}
	return &MemoryController{
		limits: limits,
		day:    make(map[string]int),
		week:   make(map[string]int),
	}
}

// CanPerformAction 判断当前时点是否允许执行动作
func (c *MemoryController) CanPerformAction(ctx context.Context, workspaceID, actionType string) (*Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	limits := c.limits[actionType]
	now := time.Now()
	dayCount := c.day[dayKey(workspaceID, actionType, now)]
	weekCount := c.week[weekKey(workspaceID, actionType, now)]

	decision := &Decision{Allowed: true}
	if limits.Daily > 0 {
		decision.RemainingToday = limits.Daily - dayCount
		if dayCount >= limits.Daily {
			decision.Allowed = false
			decision.Reason = fmt.Sprintf("已达到 %s 的每日限额 (%d)", actionType, limits.Daily)
		}
	}
	if limits.Weekly > 0 {
		decision.RemainingThisWeek = limits.Weekly - weekCount
		if weekCount >= limits.Weekly {
			decision.Allowed = false
			decision.Reason = fmt.Sprintf("已达到 %s 的每周限额 (%d)", actionType, limits.Weekly)
		}
	}
	return decision, nil
}

// RecordAction 记录一次已执行动作
func (c *MemoryController) RecordAction(ctx context.Context, workspaceID, actionType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.day[dayKey(workspaceID, actionType, now)]++
	c.week[weekKey(workspaceID, actionType, now)]++
	return nil
}
