package sophia

import (
	"backend/internal/campaign"
)

// 各渠道基线置信度，由上游赋值后随步骤流转
// 策略评估器只消费置信度，不计算它
var channelBaseline = map[string]int{
	campaign.ChannelEmail:              90,
	campaign.ChannelSMS:                85,
	campaign.ChannelLinkedIn:           75,
	campaign.ChannelLinkedInMessage:    75,
	campaign.ChannelLinkedInConnection: 70,
	campaign.ChannelPhone:              65,
	campaign.ChannelVoicemail:          65,
}

// BaselineConfidence 返回渠道基线置信度，未知渠道取最保守值
func BaselineConfidence(channel string) int {
	if v, ok := channelBaseline[channel]; ok {
		return v
	}
	return 65
}
