package sophia

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"backend/internal/campaign"
)

// TemplateGenerator 模板插值生成器
// 不依赖外部模型，直接用联系人字段渲染 {{placeholder}} 模板，
// 置信度取渠道基线
type TemplateGenerator struct{}

// NewTemplateGenerator 创建模板生成器
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

// GenerateMessage 渲染模板并返回基线置信度
func (g *TemplateGenerator) GenerateMessage(ctx context.Context, contact *campaign.Contact, step *campaign.WorkflowStep, campaignName string) (*campaign.GeneratedMessage, error) {
	if contact == nil || step == nil {
		return nil, fmt.Errorf("缺少联系人或步骤定义")
	}

	vars := contactVars(contact)
	confidence := BaselineConfidence(step.Channel)

	return &campaign.GeneratedMessage{
		Subject:    Render(step.SubjectTemplate, vars),
		Content:    Render(step.ContentTemplate, vars),
		Confidence: confidence,
		Reasoning:  fmt.Sprintf("模板插值生成，%s 渠道基线置信度 %d", step.Channel, confidence),
	}, nil
}

// Render 以 {{key}} 形式替换模板变量，未知变量保留原样
func Render(template string, vars map[string]string) string {
	if template == "" {
		return ""
	}
	result := template
	for key, value := range vars {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}

// contactVars 汇总联系人内置字段和个性化 JSON 字段
func contactVars(c *campaign.Contact) map[string]string {
	vars := map[string]string{
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"company":    c.Company,
		"email":      c.Email,
	}

	if len(c.Personalization) > 0 {
		var extra map[string]any
		if err := json.Unmarshal(c.Personalization, &extra); err == nil {
			for k, v := range extra {
				if s, ok := v.(string); ok {
					vars[k] = s
				}
			}
		}
	}

	return vars
}
