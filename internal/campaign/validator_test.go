package campaign

import (
	"testing"
)

func TestValidateWorkflow(t *testing.T) {
	cases := []struct {
		name    string
		def     *WorkflowDefinition
		wantErr int
	}{
		{
			name:    "空工作流",
			def:     &WorkflowDefinition{},
			wantErr: 1,
		},
		{
			name: "合法的两步工作流",
			def: &WorkflowDefinition{Steps: []WorkflowStep{
				{Channel: ChannelEmail, SubjectTemplate: "hi", ContentTemplate: "hello"},
				{Channel: ChannelSMS, ContentTemplate: "quick ping", Delay: 2, DelayUnit: DelayUnitDays},
			}},
			wantErr: 0,
		},
		{
			name: "未知渠道",
			def: &WorkflowDefinition{Steps: []WorkflowStep{
				{Channel: "carrier_pigeon", ContentTemplate: "coo"},
			}},
			wantErr: 1,
		},
		{
			name: "缺少内容模板",
			def: &WorkflowDefinition{Steps: []WorkflowStep{
				{Channel: ChannelSMS},
			}},
			wantErr: 1,
		},
		{
			name: "邮件缺主题模板",
			def: &WorkflowDefinition{Steps: []WorkflowStep{
				{Channel: ChannelEmail, ContentTemplate: "hello"},
			}},
			wantErr: 1,
		},
		{
			name: "负延迟",
			def: &WorkflowDefinition{Steps: []WorkflowStep{
				{Channel: ChannelSMS, ContentTemplate: "x", Delay: -1},
			}},
			wantErr: 1,
		},
		{
			name: "未知延迟单位",
			def: &WorkflowDefinition{Steps: []WorkflowStep{
				{Channel: ChannelSMS, ContentTemplate: "x", Delay: 1, DelayUnit: "fortnights"},
			}},
			wantErr: 1,
		},
		{
			name: "多个错误逐条累积",
			def: &WorkflowDefinition{Steps: []WorkflowStep{
				{Channel: "fax", Delay: -2},
			}},
			wantErr: 3,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := ValidateWorkflow(tc.def)
			if len(errs) != tc.wantErr {
				t.Fatalf("期望 %d 条错误, 实际 %d: %v", tc.wantErr, len(errs), errs)
			}
		})
	}
}

func TestValidateAutonomy(t *testing.T) {
	if errs := ValidateAutonomy(AutonomySemi, 80); len(errs) != 0 {
		t.Fatalf("合法配置不应报错: %v", errs)
	}
	if errs := ValidateAutonomy("yolo", 80); len(errs) != 1 {
		t.Fatalf("未知自治等级应报错, 实际 %v", errs)
	}
	if errs := ValidateAutonomy(AutonomyFull, 180); len(errs) != 1 {
		t.Fatalf("阈值越界应报错, 实际 %v", errs)
	}
	if errs := ValidateAutonomy("", -5); len(errs) != 2 {
		t.Fatalf("双重错误应各报一条, 实际 %v", errs)
	}
}

func TestWorkflowStepDelayDuration(t *testing.T) {
	cases := []struct {
		step WorkflowStep
		want string
	}{
		{WorkflowStep{Delay: 30, DelayUnit: DelayUnitMinutes}, "30m0s"},
		{WorkflowStep{Delay: 4, DelayUnit: DelayUnitHours}, "4h0m0s"},
		{WorkflowStep{Delay: 2, DelayUnit: DelayUnitDays}, "48h0m0s"},
		{WorkflowStep{Delay: 1, DelayUnit: ""}, "24h0m0s"}, // 未填单位按天
		{WorkflowStep{Delay: 0, DelayUnit: DelayUnitDays}, "0s"},
	}
	for _, tc := range cases {
		if got := tc.step.DelayDuration().String(); got != tc.want {
			t.Fatalf("DelayDuration(%+v) = %s, 期望 %s", tc.step, got, tc.want)
		}
	}
}
