package sophia

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"backend/internal/campaign"
	"backend/internal/config"
	"backend/internal/logger"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIGenerator 基于 OpenAI 兼容接口的生成器
// 让模型在模板骨架上做个性化改写，并自评置信度
type OpenAIGenerator struct {
	client   *openai.Client
	model    string
	fallback *TemplateGenerator
	logger   *zap.Logger
}

// NewOpenAIGenerator 创建 OpenAI 生成器
func NewOpenAIGenerator(cfg *config.SophiaConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Sophia OpenAI API Key 不能为空")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIGenerator{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    model,
		fallback: NewTemplateGenerator(),
		logger:   logger.Get(),
	}, nil
}

// sophiaDraft 模型返回的结构化结果
type sophiaDraft struct {
	Subject    string `json:"subject"`
	Content    string `json:"content"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

const systemPrompt = `你是销售外联助手 Sophia。基于给定模板和联系人信息生成个性化消息。
只返回 JSON：{"subject": "...", "content": "...", "confidence": 0-100, "reasoning": "..."}。
confidence 表示消息无需人工审核即可发送的把握，reasoning 用一两句话说明理由。`

// GenerateMessage 调用模型生成个性化内容，失败时回退到模板插值
func (g *OpenAIGenerator) GenerateMessage(ctx context.Context, contact *campaign.Contact, step *campaign.WorkflowStep, campaignName string) (*campaign.GeneratedMessage, error) {
	if contact == nil || step == nil {
		return nil, fmt.Errorf("缺少联系人或步骤定义")
	}

	userPrompt := fmt.Sprintf(
		"活动: %s\n渠道: %s\n联系人: %s %s (%s)\n主题模板: %s\n内容模板: %s",
		campaignName, step.Channel,
		contact.FirstName, contact.LastName, contact.Company,
		step.SubjectTemplate, step.ContentTemplate,
	)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		g.logger.Warn("Sophia 模型调用失败，回退到模板生成", zap.Error(err))
		return g.fallback.GenerateMessage(ctx, contact, step, campaignName)
	}

	if len(resp.Choices) == 0 {
		return g.fallback.GenerateMessage(ctx, contact, step, campaignName)
	}

	draft, err := parseDraft(resp.Choices[0].Message.Content)
	if err != nil {
		g.logger.Warn("Sophia 返回内容解析失败，回退到模板生成", zap.Error(err))
		return g.fallback.GenerateMessage(ctx, contact, step, campaignName)
	}

	// 模型自评不会高于渠道基线，防止高风险渠道被抬高
	baseline := BaselineConfidence(step.Channel)
	confidence := draft.Confidence
	if confidence > baseline {
		confidence = baseline
	}
	if confidence < 0 {
		confidence = 0
	}

	return &campaign.GeneratedMessage{
		Subject:    draft.Subject,
		Content:    draft.Content,
		Confidence: confidence,
		Reasoning:  draft.Reasoning,
	}, nil
}

// parseDraft 解析模型返回的 JSON，容忍 markdown 代码块包裹
func parseDraft(raw string) (*sophiaDraft, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var draft sophiaDraft
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &draft); err != nil {
		return nil, fmt.Errorf("解析 Sophia 草稿失败: %w", err)
	}
	if draft.Content == "" {
		return nil, fmt.Errorf("Sophia 草稿缺少内容")
	}
	return &draft, nil
}

// NewGenerator 根据配置选择生成器实现
func NewGenerator(cfg *config.SophiaConfig) campaign.ContentGenerator {
	if cfg != nil && cfg.Provider == "openai" && cfg.APIKey != "" {
		gen, err := NewOpenAIGenerator(cfg)
		if err == nil {
			return gen
		}
		logger.Warn("初始化 OpenAI 生成器失败，回退到模板生成器", zap.Error(err))
	}
	return NewTemplateGenerator()
}
