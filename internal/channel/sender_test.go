package channel

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"backend/internal/campaign"
	"backend/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error", "console", "stderr"); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func TestRegistry_RoutesByChannel(t *testing.T) {
	reg := NewRegistry()
	var got string
	reg.Register("email", SenderFunc(func(ctx context.Context, req *SendRequest) (*SendResult, error) {
		got = req.Recipient
		return &SendResult{Success: true, MessageID: "m-1"}, nil
	}))

	res, err := reg.Send(context.Background(), &SendRequest{Channel: "email", Recipient: "a@b.com"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "m-1", res.MessageID)
	assert.Equal(t, "a@b.com", got)
}

func TestRegistry_UnknownChannel(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Send(context.Background(), &SendRequest{Channel: "fax"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "未注册的渠道")
}

func TestRegistry_ReRegisterOverrides(t *testing.T) {
	reg := NewRegistry()
	reg.Register("sms", SenderFunc(func(ctx context.Context, req *SendRequest) (*SendResult, error) {
		return &SendResult{MessageID: "old"}, nil
	}))
	reg.Register("sms", SenderFunc(func(ctx context.Context, req *SendRequest) (*SendResult, error) {
		return &SendResult{MessageID: "new"}, nil
	}))

	res, err := reg.Send(context.Background(), &SendRequest{Channel: "sms"})
	require.NoError(t, err)
	assert.Equal(t, "new", res.MessageID)
}

func TestRegisterDefaults_CoversAllChannels(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterDefaults(NewDryRunSender())

	for _, ch := range Channels {
		res, err := reg.Send(context.Background(), &SendRequest{Channel: ch, Recipient: "someone"})
		require.NoError(t, err, ch)
		assert.True(t, res.Success, ch)
		assert.True(t, strings.HasPrefix(res.MessageID, "dryrun-"), ch)
	}
}

func TestRegisterDefaults_RoutesEveryWorkflowChannel(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterDefaults(NewDryRunSender())

	// 工作流校验接受的渠道必须全部可路由，否则步骤会被标记为失败
	workflowChannels := []string{
		campaign.ChannelEmail,
		campaign.ChannelSMS,
		campaign.ChannelLinkedIn,
		campaign.ChannelLinkedInMessage,
		campaign.ChannelLinkedInConnection,
		campaign.ChannelPhone,
		campaign.ChannelVoicemail,
	}
	for _, ch := range workflowChannels {
		res, err := reg.Send(context.Background(), &SendRequest{Channel: ch, Recipient: "someone"})
		require.NoError(t, err, ch)
		assert.True(t, res.Success, ch)
	}
}

func TestDryRunSender_EmptyRecipient(t *testing.T) {
	sender := NewDryRunSender()
	res, err := sender.Send(context.Background(), &SendRequest{Channel: "email"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "收件地址为空")
}

func TestParseConnectorConfig(t *testing.T) {
	t.Run("合法的邮件配置", func(t *testing.T) {
		cfg, err := ParseConnectorConfig([]byte(`{"kind":"email","email":{"smtp_host":"smtp.example.com","smtp_port":587,"from_address":"out@example.com"}}`))
		require.NoError(t, err)
		require.NotNil(t, cfg.Email)
		assert.Equal(t, "smtp.example.com", cfg.Email.SMTPHost)
		assert.Equal(t, 587, cfg.Email.SMTPPort)
	})

	t.Run("Kind与变体不一致", func(t *testing.T) {
		_, err := ParseConnectorConfig([]byte(`{"kind":"sms","email":{"smtp_host":"x"}}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sms 连接器缺少配置")
	})

	t.Run("未知连接器类型", func(t *testing.T) {
		_, err := ParseConnectorConfig([]byte(`{"kind":"pigeon"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "未知的连接器类型")
	})

	t.Run("非法JSON", func(t *testing.T) {
		_, err := ParseConnectorConfig([]byte(`{kind:`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "解析连接器配置失败")
	})
}
