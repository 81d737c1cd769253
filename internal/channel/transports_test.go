package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSenderFromConfig_ChannelCoverage(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *ConnectorConfig
		channels []string
	}{
		{
			name:     "邮件连接器只覆盖email",
			cfg:      &ConnectorConfig{Kind: "email", Email: &EmailConnectorConfig{SMTPHost: "smtp.example.com", SMTPPort: 587}},
			channels: []string{"email"},
		},
		{
			name:     "短信连接器只覆盖sms",
			cfg:      &ConnectorConfig{Kind: "sms", SMS: &SMSConnectorConfig{AccountSID: "AC1", AuthToken: "tok", FromNumber: "+1000"}},
			channels: []string{"sms"},
		},
		{
			name:     "LinkedIn连接器覆盖三个变体",
			cfg:      &ConnectorConfig{Kind: "linkedin", LinkedIn: &LinkedInConnectorConfig{BaseURL: "https://provider.example", AccessToken: "tok"}},
			channels: []string{"linkedin", "linkedin_message", "linkedin_connection"},
		},
		{
			name:     "语音连接器覆盖电话与留言",
			cfg:      &ConnectorConfig{Kind: "phone", Phone: &PhoneConnectorConfig{ProviderURL: "https://voice.example/calls"}},
			channels: []string{"phone", "voicemail"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channels, sender, err := NewSenderFromConfig(tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, sender)
			assert.Equal(t, tt.channels, channels)
		})
	}

	t.Run("非法配置拒绝", func(t *testing.T) {
		_, _, err := NewSenderFromConfig(&ConnectorConfig{Kind: "email"})
		require.Error(t, err)
	})
}

func TestRegisterConnectors_OverridesDryRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"call_id":"call-7"}`))
	}))
	defer srv.Close()

	reg := NewRegistry()
	reg.RegisterDefaults(NewDryRunSender())
	require.NoError(t, reg.RegisterConnectors([]*ConnectorConfig{
		{Kind: "phone", Phone: &PhoneConnectorConfig{ProviderURL: srv.URL, APIKey: "k"}},
	}))

	// phone/voicemail 改走语音服务商，其余渠道仍是 dry-run
	res, err := reg.Send(context.Background(), &SendRequest{Channel: "voicemail", Recipient: "+8610001"})
	require.NoError(t, err)
	assert.Equal(t, "call-7", res.MessageID)

	res, err = reg.Send(context.Background(), &SendRequest{Channel: "email", Recipient: "a@b.com"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.MessageID, "dryrun-"))
}

func TestVoiceSender_PostsCallRequest(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"call_id":"call-42"}`))
	}))
	defer srv.Close()

	sender := NewVoiceSender(&PhoneConnectorConfig{
		ProviderURL: srv.URL + "/v1/calls",
		APIKey:      "secret-key",
		CallerID:    "+8610000",
	})

	res, err := sender.Send(context.Background(), &SendRequest{
		Channel:   "voicemail",
		Recipient: "+8613800000000",
		Content:   "您好，这里是跟进留言",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "call-42", res.MessageID)
	assert.Equal(t, "/v1/calls", gotPath)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "+8613800000000", gotBody["to"])
	assert.Equal(t, "+8610000", gotBody["caller_id"])
	assert.Equal(t, "voicemail", gotBody["mode"])
}

func TestVoiceSender_ProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid caller id", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	sender := NewVoiceSender(&PhoneConnectorConfig{ProviderURL: srv.URL})
	res, err := sender.Send(context.Background(), &SendRequest{Channel: "phone", Recipient: "+861"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "422")
}

func TestLinkedInSender_RoutesConnectionToInvitations(t *testing.T) {
	var paths []string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"id":"li-1"}`))
	}))
	defer srv.Close()

	sender := NewLinkedInSender(&LinkedInConnectorConfig{BaseURL: srv.URL, AccessToken: "tok-1"})

	_, err := sender.Send(context.Background(), &SendRequest{Channel: "linkedin_connection", Recipient: "https://linkedin.example/in/ada"})
	require.NoError(t, err)
	res, err := sender.Send(context.Background(), &SendRequest{Channel: "linkedin_message", Recipient: "https://linkedin.example/in/ada"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/api/v1/invitations", "/api/v1/messages"}, paths)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "li-1", res.MessageID)
}

func TestTwilioSMSSender_BuildsFormRequest(t *testing.T) {
	var gotPath, gotTo, gotFrom string
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		_, _ = w.Write([]byte(`{"sid":"SM123"}`))
	}))
	defer srv.Close()

	sender := NewTwilioSMSSender(&SMSConnectorConfig{AccountSID: "AC9", AuthToken: "tok-9", FromNumber: "+1999"})
	sender.apiBase = srv.URL

	res, err := sender.Send(context.Background(), &SendRequest{Channel: "sms", Recipient: "+1555", Content: "hi"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "SM123", res.MessageID)
	assert.Equal(t, "/2010-04-01/Accounts/AC9/Messages.json", gotPath)
	assert.Equal(t, "AC9", gotUser)
	assert.Equal(t, "tok-9", gotPass)
	assert.Equal(t, "+1555", gotTo)
	assert.Equal(t, "+1999", gotFrom)
}

func TestSMTPSender_MessageFormat(t *testing.T) {
	sender := NewSMTPSender(&EmailConnectorConfig{
		SMTPHost:    "smtp.example.com",
		SMTPPort:    587,
		FromAddress: "out@example.com",
		FromName:    "Outreach",
	})

	msg := string(sender.message(&SendRequest{
		Recipient: "grace@initech.example",
		Subject:   "quick question",
		Content:   "hello Grace",
	}, "mid-1"))

	assert.Contains(t, msg, "From: Outreach <out@example.com>\r\n")
	assert.Contains(t, msg, "To: grace@initech.example\r\n")
	assert.Contains(t, msg, "Subject: quick question\r\n")
	assert.Contains(t, msg, "Message-ID: <mid-1@smtp.example.com>\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\nhello Grace"))
}

func TestLoadConnectorsFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("合法清单", func(t *testing.T) {
		path := filepath.Join(dir, "connectors.json")
		require.NoError(t, os.WriteFile(path, []byte(`[
			{"kind":"email","email":{"smtp_host":"smtp.example.com","smtp_port":587}},
			{"kind":"phone","phone":{"provider_url":"https://voice.example/calls"}}
		]`), 0o644))

		cfgs, err := LoadConnectorsFile(path)
		require.NoError(t, err)
		require.Len(t, cfgs, 2)
		assert.Equal(t, "email", cfgs[0].Kind)
		assert.Equal(t, "phone", cfgs[1].Kind)
	})

	t.Run("任一条目非法整体失败", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte(`[
			{"kind":"email","email":{"smtp_host":"smtp.example.com"}},
			{"kind":"sms"}
		]`), 0o644))

		_, err := LoadConnectorsFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "第 2 条")
	})

	t.Run("文件不存在", func(t *testing.T) {
		_, err := LoadConnectorsFile(filepath.Join(dir, "missing.json"))
		require.Error(t, err)
	})
}
