package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outreach_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 执行引擎指标
var (
	// StepsExecutedTotal 已派发步骤总数（按渠道和结果统计）
	StepsExecutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_steps_executed_total",
			Help: "已派发步骤总数",
		},
		[]string{"channel", "status", "workspace_id"},
	)

	// StepSendDuration 渠道发送耗时（秒）
	StepSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outreach_step_send_duration_seconds",
			Help:    "渠道发送耗时分布",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"channel"},
	)

	// ApprovalPendingGauge 待审批步骤数量
	ApprovalPendingGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "outreach_approvals_pending",
			Help: "待审批步骤数量",
		},
		[]string{"workspace_id"},
	)

	// ApprovalDecisionsTotal 审批决策总数
	ApprovalDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_approval_decisions_total",
			Help: "审批决策总数",
		},
		[]string{"workspace_id", "decision"},
	)

	// OrchestratorCycleDuration 编排器单轮轮询耗时（秒）
	OrchestratorCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outreach_orchestrator_cycle_duration_seconds",
			Help:    "编排器单轮轮询耗时分布",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
	)

	// SafetyBlockedTotal 被安全限额拦截的动作总数
	SafetyBlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_safety_blocked_total",
			Help: "被安全限额拦截的动作总数",
		},
		[]string{"channel", "reason"},
	)
)
