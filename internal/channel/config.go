package channel

import (
	"encoding/json"
	"fmt"
	"os"
)

// ConnectorConfig 渠道连接器配置的标签联合
// 每个渠道只携带自己需要的字段，Kind 决定具体变体
type ConnectorConfig struct {
	Kind     string               `json:"kind"` // email, sms, linkedin, phone
	Email    *EmailConnectorConfig    `json:"email,omitempty"`
	SMS      *SMSConnectorConfig      `json:"sms,omitempty"`
	LinkedIn *LinkedInConnectorConfig `json:"linkedin,omitempty"`
	Phone    *PhoneConnectorConfig    `json:"phone,omitempty"`
}

// EmailConnectorConfig 邮件连接器配置
type EmailConnectorConfig struct {
	SMTPHost    string `json:"smtp_host"`
	SMTPPort    int    `json:"smtp_port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FromAddress string `json:"from_address"`
	FromName    string `json:"from_name"`
}

// SMSConnectorConfig 短信连接器配置
type SMSConnectorConfig struct {
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	FromNumber string `json:"from_number"`
}

// LinkedInConnectorConfig LinkedIn 连接器配置
// 通过托管账号服务商的 API 投递，base_url 指向服务商入口
type LinkedInConnectorConfig struct {
	BaseURL      string `json:"base_url"`
	AccountID    string `json:"account_id"`
	AccessToken  string `json:"access_token"`
	SeatWarmedUp bool   `json:"seat_warmed_up"` // 是否已过 warmup 期
}

// PhoneConnectorConfig 电话/语音留言连接器配置
type PhoneConnectorConfig struct {
	ProviderURL string `json:"provider_url"`
	APIKey      string `json:"api_key"`
	CallerID    string `json:"caller_id"`
}

// Validate 校验配置变体与 Kind 一致
func (c *ConnectorConfig) Validate() error {
	switch c.Kind {
	case "email":
		if c.Email == nil {
			return fmt.Errorf("email 连接器缺少配置")
		}
	case "sms":
		if c.SMS == nil {
			return fmt.Errorf("sms 连接器缺少配置")
		}
	case "linkedin":
		if c.LinkedIn == nil {
			return fmt.Errorf("linkedin 连接器缺少配置")
		}
		if c.LinkedIn.BaseURL == "" {
			return fmt.Errorf("linkedin 连接器缺少 base_url")
		}
	case "phone":
		if c.Phone == nil {
			return fmt.Errorf("phone 连接器缺少配置")
		}
		if c.Phone.ProviderURL == "" {
			return fmt.Errorf("phone 连接器缺少 provider_url")
		}
	default:
		return fmt.Errorf("未知的连接器类型: %s", c.Kind)
	}
	return nil
}

// ParseConnectorConfig 解析并校验连接器配置
func ParseConnectorConfig(data []byte) (*ConnectorConfig, error) {
	var cfg ConnectorConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析连接器配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConnectorsFile 从 JSON 文件加载连接器配置列表
// 任何一条配置非法都整体失败，避免部分渠道悄悄停留在 dry-run
func LoadConnectorsFile(path string) ([]*ConnectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取连接器配置文件失败: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("解析连接器配置文件失败: %w", err)
	}

	cfgs := make([]*ConnectorConfig, 0, len(raw))
	for i, item := range raw {
		cfg, err := ParseConnectorConfig(item)
		if err != nil {
			return nil, fmt.Errorf("第 %d 条连接器配置非法: %w", i+1, err)
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}
