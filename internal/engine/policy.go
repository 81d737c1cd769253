package engine

import (
	"backend/internal/campaign"
)

// AlwaysApprovalChannels 无论置信度如何，半自治模式下一律需要人工审批的渠道
var AlwaysApprovalChannels = map[string]bool{
	campaign.ChannelLinkedIn:           true,
	campaign.ChannelLinkedInMessage:    true,
	campaign.ChannelLinkedInConnection: true,
	campaign.ChannelPhone:              true,
	campaign.ChannelVoicemail:          true,
}

// RequiresApproval 自治策略决策表
// 纯函数：无副作用、无 I/O，置信度由上游提供，这里不计算
//
//	manual_approval  → 一律审批
//	semi_autonomous  → 渠道在 always-approval 集合内，或置信度低于阈值时审批
//	full_autonomous  → 一律自动执行
//
// 未知等级按最保守的 manual_approval 处理
func RequiresApproval(channel string, confidence int, autonomyLevel string, threshold int) bool {
	switch autonomyLevel {
	case campaign.AutonomyFull:
		return false
	case campaign.AutonomySemi:
		return AlwaysApprovalChannels[channel] || confidence < threshold
	default: // campaign.AutonomyManualApproval 及未知等级
		return true
	}
}
