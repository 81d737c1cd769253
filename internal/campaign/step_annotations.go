package campaign

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// personalization_data 中的 Sophia 注解键
const (
	annotationConfidence = "sophia_confidence"
	annotationReasoning  = "sophia_reasoning"
)

// SetSophiaAnnotations 把生成时的置信度与推理写入 personalization_data
// extra 中的键一并合并（联系人个性化快照等）
func (s *ScheduledStep) SetSophiaAnnotations(confidence int, reasoning string, extra map[string]any) error {
	data := map[string]any{}
	if len(s.PersonalizationData) > 0 {
		if err := json.Unmarshal(s.PersonalizationData, &data); err != nil {
			data = map[string]any{}
		}
	}

	for k, v := range extra {
		data[k] = v
	}
	data[annotationConfidence] = confidence
	data[annotationReasoning] = reasoning

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.PersonalizationData = datatypes.JSON(raw)
	return nil
}

// SophiaConfidence 读取生成时写入的置信度
// 返回 false 表示步骤缺少注解，调用方应回退到渠道基线
func (s *ScheduledStep) SophiaConfidence() (int, bool) {
	if len(s.PersonalizationData) == 0 {
		return 0, false
	}
	var data map[string]any
	if err := json.Unmarshal(s.PersonalizationData, &data); err != nil {
		return 0, false
	}
	if v, ok := data[annotationConfidence].(float64); ok {
		return int(v), true
	}
	return 0, false
}

// SophiaReasoning 读取生成时写入的推理文本
func (s *ScheduledStep) SophiaReasoning() string {
	if len(s.PersonalizationData) == 0 {
		return ""
	}
	var data map[string]any
	if err := json.Unmarshal(s.PersonalizationData, &data); err != nil {
		return ""
	}
	if v, ok := data[annotationReasoning].(string); ok {
		return v
	}
	return ""
}
