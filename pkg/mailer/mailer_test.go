package mailer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/config"
)

func TestNewReturnsLogSenderWhenDisabled(t *testing.T) {
	s := New(config.MailConfig{Enabled: false}, zap.NewNop())
	_, ok := s.(*LogSender)
	require.True(t, ok)
	assert.NoError(t, s.Send(context.Background(), Message{To: []string{"a@b.c"}, Subject: "x"}))
}

func TestSMTPSenderRequiresHost(t *testing.T) {
	s := NewSMTPSender(config.MailConfig{Enabled: true})
	assert.Equal(t, 587, s.port)
	assert.Error(t, s.Send(context.Background(), Message{To: []string{"a@b.c"}}))
	assert.NoError(t, s.Send(context.Background(), Message{}))
}

func TestBuildMessageHeaders(t *testing.T) {
	m := BuildMessage("Journal <no-reply@ictirc.org>", Message{
		To:      []string{"author@example.com"},
		Cc:      []string{"editor@example.com"},
		Subject: "Paper accepted",
		Text:    "Congratulations",
		HTML:    "<p>Congratulations</p>",
	})

	assert.Equal(t, []string{"author@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"editor@example.com"}, m.GetHeader("Cc"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Subject: Paper accepted")
	assert.Contains(t, buf.String(), "text/html")
}
