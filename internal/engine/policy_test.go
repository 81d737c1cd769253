package engine

import (
	"testing"

	"backend/internal/campaign"
)

func TestRequiresApproval(t *testing.T) {
	cases := []struct {
		name       string
		channel    string
		confidence int
		level      string
		threshold  int
		want       bool
	}{
		{"手动模式高置信度也要审批", campaign.ChannelEmail, 99, campaign.AutonomyManualApproval, 80, true},
		{"全自治低置信度也放行", campaign.ChannelEmail, 10, campaign.AutonomyFull, 80, false},
		{"全自治电话渠道也放行", campaign.ChannelPhone, 50, campaign.AutonomyFull, 80, false},
		{"半自治邮件高置信度放行", campaign.ChannelEmail, 90, campaign.AutonomySemi, 80, false},
		{"半自治邮件低置信度审批", campaign.ChannelEmail, 79, campaign.AutonomySemi, 80, true},
		{"半自治邮件置信度等于阈值放行", campaign.ChannelEmail, 80, campaign.AutonomySemi, 80, false},
		{"半自治短信高置信度放行", campaign.ChannelSMS, 85, campaign.AutonomySemi, 80, false},
		{"半自治 LinkedIn 连接高置信度仍审批", campaign.ChannelLinkedInConnection, 100, campaign.AutonomySemi, 80, true},
		{"半自治 LinkedIn 消息仍审批", campaign.ChannelLinkedInMessage, 100, campaign.AutonomySemi, 80, true},
		{"半自治电话仍审批", campaign.ChannelPhone, 100, campaign.AutonomySemi, 80, true},
		{"半自治语音留言仍审批", campaign.ChannelVoicemail, 100, campaign.AutonomySemi, 80, true},
		{"未知等级按最保守处理", campaign.ChannelEmail, 100, "experimental", 80, true},
		{"空等级按最保守处理", campaign.ChannelEmail, 100, "", 80, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RequiresApproval(tc.channel, tc.confidence, tc.level, tc.threshold)
			if got != tc.want {
				t.Fatalf("RequiresApproval(%s, %d, %s, %d) = %v, 期望 %v",
					tc.channel, tc.confidence, tc.level, tc.threshold, got, tc.want)
			}
		})
	}
}
