package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"backend/internal/config"
	"backend/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Client 任务队列客户端接口
type Client interface {
	EnqueueLaunchCampaign(payload tasks.LaunchCampaignPayload) error
	EnqueueDispatchStep(payload tasks.DispatchStepPayload) error
	Close() error
}

type asynqClient struct {
	client *asynq.Client
}

// NewClient 创建任务队列客户端
func NewClient(cfg config.RedisConfig) Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &asynqClient{client: client}
}

func (c *asynqClient) EnqueueLaunchCampaign(payload tasks.LaunchCampaignPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(tasks.TypeLaunchCampaign, data)

	// 物化无幂等副作用之外的外部调用，失败可安全重试
	info, err := c.client.Enqueue(task,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("launch"),
	)
	if err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}

	_ = info
	return nil
}

func (c *asynqClient) EnqueueDispatchStep(payload tasks.DispatchStepPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(tasks.TypeDispatchStep, data)

	// 派发由条件更新保证幂等，轮询兜底扫描会捡起丢失的任务，不做队列级重试
	info, err := c.client.Enqueue(task,
		asynq.MaxRetry(0),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("dispatch"),
	)
	if err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}

	_ = info
	return nil
}

func (c *asynqClient) Close() error {
	return c.client.Close()
}
