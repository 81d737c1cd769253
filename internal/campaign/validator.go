package campaign

import (
	"fmt"
)

// ValidationError 单条验证错误
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var validChannels = map[string]bool{
	ChannelEmail:              true,
	ChannelSMS:                true,
	ChannelLinkedIn:           true,
	ChannelLinkedInMessage:    true,
	ChannelLinkedInConnection: true,
	ChannelPhone:              true,
	ChannelVoicemail:          true,
}

var validDelayUnits = map[string]bool{
	DelayUnitMinutes: true,
	DelayUnitHours:   true,
	DelayUnitDays:    true,
}

var validAutonomyLevels = map[string]bool{
	AutonomyManualApproval: true,
	AutonomySemi:           true,
	AutonomyFull:           true,
}

// ValidateWorkflow 验证工作流定义
// 在活动创建/启动时调用，任何错误都会阻止 ScheduledStep 的生成
func ValidateWorkflow(def *WorkflowDefinition) []ValidationError {
	errs := []ValidationError{}

	if def == nil || len(def.Steps) == 0 {
		errs = append(errs, ValidationError{
			Field:   "workflow.steps",
			Message: "至少需要一个步骤",
		})
		return errs
	}

	for i, step := range def.Steps {
		if !validChannels[step.Channel] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("workflow.steps[%d].channel", i),
				Message: fmt.Sprintf("不支持的渠道: %s", step.Channel),
			})
		}
		if step.ContentTemplate == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("workflow.steps[%d].content_template", i),
				Message: "缺少内容模板",
			})
		}
		if step.Channel == ChannelEmail && step.SubjectTemplate == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("workflow.steps[%d].subject_template", i),
				Message: "邮件步骤缺少主题模板",
			})
		}
		if step.Delay < 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("workflow.steps[%d].delay", i),
				Message: "延迟不能为负",
			})
		}
		if step.DelayUnit != "" && !validDelayUnits[step.DelayUnit] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("workflow.steps[%d].delay_unit", i),
				Message: fmt.Sprintf("不支持的延迟单位: %s", step.DelayUnit),
			})
		}
		// 首个步骤之前的延迟允许为 0，后续步骤未填延迟时按 0 处理
	}

	return errs
}

// ValidateAutonomy 验证自治策略配置
func ValidateAutonomy(level string, threshold int) []ValidationError {
	errs := []ValidationError{}
	if !validAutonomyLevels[level] {
		errs = append(errs, ValidationError{
			Field:   "autonomy_level",
			Message: fmt.Sprintf("不支持的自治等级: %s", level),
		})
	}
	if threshold < 0 || threshold > 100 {
		errs = append(errs, ValidationError{
			Field:   "approval_threshold",
			Message: "置信度阈值必须在 0-100 之间",
		})
	}
	return errs
}
