package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const twilioAPIBase = "https://api.twilio.com"

// NewSenderFromConfig 根据连接器配置构建发送器
// 返回该发送器覆盖的渠道列表，一个连接器可以服务多个渠道
func NewSenderFromConfig(cfg *ConnectorConfig) ([]string, Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	switch cfg.Kind {
	case "email":
		return []string{"email"}, NewSMTPSender(cfg.Email), nil
	case "sms":
		return []string{"sms"}, NewTwilioSMSSender(cfg.SMS), nil
	case "linkedin":
		return []string{"linkedin", "linkedin_message", "linkedin_connection"}, NewLinkedInSender(cfg.LinkedIn), nil
	case "phone":
		return []string{"phone", "voicemail"}, NewVoiceSender(cfg.Phone), nil
	default:
		return nil, nil, fmt.Errorf("未知的连接器类型: %s", cfg.Kind)
	}
}

// RegisterConnectors 按配置批量注册发送器，覆盖对应渠道的兜底实现
func (r *Registry) RegisterConnectors(cfgs []*ConnectorConfig) error {
	for _, cfg := range cfgs {
		channels, sender, err := NewSenderFromConfig(cfg)
		if err != nil {
			return err
		}
		for _, ch := range channels {
			r.Register(ch, sender)
		}
	}
	return nil
}

// SMTPSender SMTP 邮件发送器
type SMTPSender struct {
	cfg *EmailConnectorConfig
}

// NewSMTPSender 创建 SMTP 发送器
func NewSMTPSender(cfg *EmailConnectorConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send 实现 Sender 接口
func (s *SMTPSender) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	if req.Recipient == "" {
		return &SendResult{Success: false, Error: "收件地址为空"}, nil
	}

	messageID := uuid.New().String()
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.FromAddress, []string{req.Recipient}, s.message(req, messageID)); err != nil {
		return nil, fmt.Errorf("SMTP 发送失败: %w", err)
	}
	return &SendResult{Success: true, MessageID: messageID}, nil
}

// message 组装 RFC 5322 格式的邮件正文
func (s *SMTPSender) message(req *SendRequest, messageID string) []byte {
	from := s.cfg.FromAddress
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddress)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", req.Recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", req.Subject)
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", messageID, s.cfg.SMTPHost)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(req.Content)
	return []byte(b.String())
}

// TwilioSMSSender Twilio 短信发送器
type TwilioSMSSender struct {
	cfg        *SMSConnectorConfig
	httpClient *http.Client
	apiBase    string
}

// NewTwilioSMSSender 创建 Twilio 短信发送器
func NewTwilioSMSSender(cfg *SMSConnectorConfig) *TwilioSMSSender {
	return &TwilioSMSSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiBase:    twilioAPIBase,
	}
}

// Send 实现 Sender 接口
func (s *TwilioSMSSender) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	if req.Recipient == "" {
		return &SendResult{Success: false, Error: "收件号码为空"}, nil
	}

	form := url.Values{}
	form.Set("To", req.Recipient)
	form.Set("From", s.cfg.FromNumber)
	form.Set("Body", req.Content)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.apiBase, s.cfg.AccountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("短信发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		return &SendResult{Success: false, Error: fmt.Sprintf("短信服务商拒绝: %d %s", resp.StatusCode, body)}, nil
	}

	var parsed struct {
		Sid string `json:"sid"`
	}
	_ = json.Unmarshal(body, &parsed)
	if parsed.Sid == "" {
		parsed.Sid = uuid.New().String()
	}
	return &SendResult{Success: true, MessageID: parsed.Sid}, nil
}

// LinkedInSender 托管 LinkedIn 账号发送器
// 加好友请求与站内信走服务商的不同端点
type LinkedInSender struct {
	cfg        *LinkedInConnectorConfig
	httpClient *http.Client
}

// NewLinkedInSender 创建 LinkedIn 发送器
func NewLinkedInSender(cfg *LinkedInConnectorConfig) *LinkedInSender {
	return &LinkedInSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Send 实现 Sender 接口
func (s *LinkedInSender) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	if req.Recipient == "" {
		return &SendResult{Success: false, Error: "收件人主页地址为空"}, nil
	}

	path := "/api/v1/messages"
	if req.Channel == "linkedin_connection" {
		path = "/api/v1/invitations"
	}

	payload, err := json.Marshal(map[string]string{
		"account_id":  s.cfg.AccountID,
		"profile_url": req.Recipient,
		"message":     req.Content,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.cfg.BaseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("LinkedIn 发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		return &SendResult{Success: false, Error: fmt.Sprintf("LinkedIn 服务商拒绝: %d %s", resp.StatusCode, body)}, nil
	}

	var parsed struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &parsed)
	if parsed.ID == "" {
		parsed.ID = uuid.New().String()
	}
	return &SendResult{Success: true, MessageID: parsed.ID}, nil
}

// VoiceSender 电话/语音留言发送器，POST 到语音服务商的呼叫接口
type VoiceSender struct {
	cfg        *PhoneConnectorConfig
	httpClient *http.Client
}

// NewVoiceSender 创建语音发送器
func NewVoiceSender(cfg *PhoneConnectorConfig) *VoiceSender {
	return &VoiceSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Send 实现 Sender 接口
func (s *VoiceSender) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	if req.Recipient == "" {
		return &SendResult{Success: false, Error: "收件号码为空"}, nil
	}

	payload, err := json.Marshal(map[string]string{
		"to":        req.Recipient,
		"caller_id": s.cfg.CallerID,
		"script":    req.Content,
		"mode":      req.Channel, // phone 实时呼叫，voicemail 直接留言
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ProviderURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("X-API-Key", s.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("语音呼叫请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		return &SendResult{Success: false, Error: fmt.Sprintf("语音服务商拒绝: %d %s", resp.StatusCode, body)}, nil
	}

	var parsed struct {
		CallID string `json:"call_id"`
	}
	_ = json.Unmarshal(body, &parsed)
	if parsed.CallID == "" {
		parsed.CallID = uuid.New().String()
	}
	return &SendResult{Success: true, MessageID: parsed.CallID}, nil
}
