package api

import (
	"context"
	"fmt"
	"os"
	"strings"

	"backend/api/handlers/approvals"
	"backend/api/handlers/campaigns"
	"backend/internal/auth"
	"backend/internal/campaign"
	"backend/internal/channel"
	"backend/internal/config"
	"backend/internal/engine"
	"backend/internal/engine/approval"
	"backend/internal/infra/queue"
	"backend/internal/logger"
	"backend/internal/metrics"
	"backend/internal/middleware"
	"backend/internal/safety"
	"backend/internal/sophia"
	"backend/internal/worker"
	"backend/internal/worker/tasks"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AppContainer 应用服务容器
// 集中持有全部服务实例，路由注册和后台进程从这里取依赖
type AppContainer struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  redis.UniversalClient // 可能为 nil（Redis 不可用时降级）

	JWTService  *auth.JWTService
	QueueClient queue.Client

	CampaignService *campaign.Service
	Senders         *channel.Registry
	Safety          safety.Controller

	Approvals    *approval.Manager
	Rules        *engine.RuleEngine
	Orchestrator *engine.Orchestrator

	WorkerServer *worker.Server
	RateLimiter  *middleware.RateLimiter
}

// Handlers HTTP 处理器集合
type Handlers struct {
	Campaigns  *campaigns.CampaignHandler
	Contacts   *campaigns.ContactHandler
	Approvals  *approvals.ApprovalHandler
	GuardRules *approvals.GuardRuleHandler
}

// InitContainer 构建服务容器
// Redis 不可用时任务队列与限额计数降级为内存实现，服务仍可启动
func InitContainer(db *gorm.DB, cfg *config.Config) *AppContainer {
	redisCfg := normalizeRedisConfig(cfg.Redis)

	var redisClient redis.UniversalClient = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", redisCfg.Host, redisCfg.Port),
		Password:     redisCfg.Password,
		DB:           redisCfg.DB,
		PoolSize:     redisCfg.PoolSize,
		MinIdleConns: redisCfg.MinIdleConns,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("Redis 不可用，任务队列与渠道限额将退回内存实现", zap.Error(err))
		redisClient = nil
	}

	// 认证服务
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	jwtSecretKey := strings.TrimSpace(os.Getenv("JWT_SECRET_KEY"))
	if jwtSecretKey == "" {
		// 生产模式必须显式配置密钥，防止使用弱默认值
		if strings.EqualFold(cfg.Server.Mode, "release") || strings.EqualFold(appEnv, "prod") || strings.EqualFold(appEnv, "production") {
			logger.Fatal("JWT_SECRET_KEY 未配置，生产环境禁止使用默认密钥")
		}
		jwtSecretKey = "default_jwt_secret_key_change_in_production" // 本地/测试默认值，需明确提示
		logger.Warn("JWT_SECRET_KEY 未配置，已回退为开发默认值，请在生产环境设置强随机密钥")
	}
	jwtService := auth.NewJWTService(jwtSecretKey, "outreach-engine", redisClient)

	// 任务队列（Redis 不可用时退回同步执行路径）
	var queueClient queue.Client
	if redisClient != nil {
		queueClient = queue.NewClient(redisCfg)
	}

	// 内容与置信度生成
	generator := sophia.NewGenerator(&cfg.Sophia)

	campaignService := campaign.NewService(db, generator,
		campaign.WithDefaultThreshold(cfg.Engine.DefaultThreshold),
	)

	// 渠道发送器：先注册兜底 dry-run，再按连接器配置覆盖具体渠道
	senders := channel.NewRegistry()
	senders.RegisterDefaults(channel.NewDryRunSender())
	if path := cfg.Channels.ConnectorsFile; path != "" {
		connectors, err := channel.LoadConnectorsFile(path)
		if err != nil {
			logger.Fatal("加载渠道连接器配置失败", zap.String("path", path), zap.Error(err))
		}
		if err := senders.RegisterConnectors(connectors); err != nil {
			logger.Fatal("注册渠道连接器失败", zap.Error(err))
		}
		logger.Info("渠道连接器已注册", zap.Int("count", len(connectors)))
	}

	// 渠道安全限额
	limits := safetyLimits(&cfg.Safety)
	var safetyCtrl safety.Controller
	if redisClient != nil {
		safetyCtrl = safety.NewRedisController(redisClient, limits)
	} else {
		safetyCtrl = safety.NewMemoryController(limits)
	}

	// 审批队列与执行引擎
	bus := approval.NewResolutionBus(64)
	approvalMgr := approval.NewManager(db, approval.WithResolutionBus(bus))
	ruleEngine := engine.NewRuleEngine(db)
	executor := engine.NewExecutor(db, senders, safetyCtrl)
	advancer := engine.NewAdvancer(db)
	runLogger := engine.NewRunLogger(db)

	orchestratorOpts := []engine.OrchestratorOption{
		engine.WithPollInterval(cfg.Engine.PollIntervalDuration()),
		engine.WithBatchSize(cfg.Engine.BatchSize),
		engine.WithRuleEngine(ruleEngine),
	}
	if queueClient != nil {
		// 审批通过的派发走 asynq，由 worker 进程执行
		orchestratorOpts = append(orchestratorOpts, engine.WithDispatchEnqueuer(func(stepID, campaignID string) error {
			return queueClient.EnqueueDispatchStep(tasks.DispatchStepPayload{
				StepID:     stepID,
				CampaignID: campaignID,
			})
		}))
	}
	orchestrator := engine.NewOrchestrator(db, approvalMgr, executor, advancer, runLogger, orchestratorOpts...)

	// 异步 worker（发起与审批通过后的派发）
	var workerServer *worker.Server
	if redisClient != nil {
		workerServer = worker.NewServer(redisCfg, cfg.Engine.WorkerConcurrency, campaignService, orchestrator, logger.Get())
	}

	// 系统指标采集
	if sqlDB, err := db.DB(); err == nil {
		metrics.NewSystemCollector(sqlDB)
	}

	return &AppContainer{
		Config:          cfg,
		DB:              db,
		Redis:           redisClient,
		JWTService:      jwtService,
		QueueClient:     queueClient,
		CampaignService: campaignService,
		Senders:         senders,
		Safety:          safetyCtrl,
		Approvals:       approvalMgr,
		Rules:           ruleEngine,
		Orchestrator:    orchestrator,
		WorkerServer:    workerServer,
		RateLimiter:     middleware.NewRateLimiter(nil),
	}
}

// InitHandlers 构建 HTTP 处理器
func InitHandlers(c *AppContainer) *Handlers {
	return &Handlers{
		Campaigns:  campaigns.NewCampaignHandler(c.CampaignService, c.QueueClient),
		Contacts:   campaigns.NewContactHandler(c.CampaignService),
		Approvals:  approvals.NewApprovalHandler(c.Approvals),
		GuardRules: approvals.NewGuardRuleHandler(c.Rules),
	}
}

// safetyLimits 把配置中的日/周上限合并为渠道限额表
// 两个表都为空时返回 nil，控制器回退为内置 warmup 限额
func safetyLimits(cfg *config.SafetyConfig) map[string]safety.Limits {
	if len(cfg.DailyLimits) == 0 && len(cfg.WeeklyLimits) == 0 {
		return nil
	}
	limits := make(map[string]safety.Limits)
	for ch, n := range cfg.DailyLimits {
		l := limits[ch]
		l.Daily = n
		limits[ch] = l
	}
	for ch, n := range cfg.WeeklyLimits {
		l := limits[ch]
		l.Weekly = n
		limits[ch] = l
	}
	return limits
}
