package sophia

import (
	"context"
	"testing"

	"backend/internal/campaign"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/datatypes"
)

func TestTemplateGenerator_RendersContactFields(t *testing.T) {
	gen := NewTemplateGenerator()
	contact := &campaign.Contact{
		FirstName: "Jordan",
		LastName:  "Lee",
		Company:   "Acme",
		Email:     "jordan@acme.com",
	}
	step := &campaign.WorkflowStep{
		Channel:         campaign.ChannelEmail,
		SubjectTemplate: "Quick question, {{first_name}}",
		ContentTemplate: "Hi {{first_name}}, saw {{company}} is growing.",
	}

	msg, err := gen.GenerateMessage(context.Background(), contact, step, "Q3 outbound")
	require.NoError(t, err)
	assert.Equal(t, "Quick question, Jordan", msg.Subject)
	assert.Equal(t, "Hi Jordan, saw Acme is growing.", msg.Content)
	assert.Equal(t, BaselineConfidence(campaign.ChannelEmail), msg.Confidence)
	assert.NotEmpty(t, msg.Reasoning)
}

func TestTemplateGenerator_PersonalizationOverrides(t *testing.T) {
	gen := NewTemplateGenerator()
	contact := &campaign.Contact{
		FirstName:       "Sam",
		Personalization: datatypes.JSON([]byte(`{"pain_point":"manual reporting","first_name":"Samuel"}`)),
	}
	step := &campaign.WorkflowStep{
		Channel:         campaign.ChannelSMS,
		ContentTemplate: "{{first_name}}, struggling with {{pain_point}}?",
	}

	msg, err := gen.GenerateMessage(context.Background(), contact, step, "demo")
	require.NoError(t, err)
	// 个性化 JSON 中的同名键覆盖内置字段
	assert.Equal(t, "Samuel, struggling with manual reporting?", msg.Content)
}

func TestTemplateGenerator_UnknownPlaceholderPreserved(t *testing.T) {
	gen := NewTemplateGenerator()
	contact := &campaign.Contact{FirstName: "Kim"}
	step := &campaign.WorkflowStep{
		Channel:         campaign.ChannelEmail,
		SubjectTemplate: "hi",
		ContentTemplate: "Hi {{first_name}}, about {{mystery_field}}",
	}

	msg, err := gen.GenerateMessage(context.Background(), contact, step, "demo")
	require.NoError(t, err)
	assert.Equal(t, "Hi Kim, about {{mystery_field}}", msg.Content)
}

func TestTemplateGenerator_NilInputs(t *testing.T) {
	gen := NewTemplateGenerator()
	_, err := gen.GenerateMessage(context.Background(), nil, &campaign.WorkflowStep{}, "x")
	require.Error(t, err)
	_, err = gen.GenerateMessage(context.Background(), &campaign.Contact{}, nil, "x")
	require.Error(t, err)
}

func TestBaselineConfidence(t *testing.T) {
	assert.Equal(t, 90, BaselineConfidence(campaign.ChannelEmail))
	assert.Equal(t, 70, BaselineConfidence(campaign.ChannelLinkedInConnection))
	// 未知渠道取最保守值
	assert.Equal(t, 65, BaselineConfidence("carrier_pigeon"))
}
