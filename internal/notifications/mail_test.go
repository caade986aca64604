package notifications

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/0xPuncker/andon-notifier/internal/config"
	"github.com/0xPuncker/andon-notifier/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMTPMailerValidation(t *testing.T) {
	logger := testutil.NewLogger(t)

	_, err := NewSMTPMailer(config.SMTPConfig{From: "andon@plant.example"}, logger)
	assert.Error(t, err)

	_, err = NewSMTPMailer(config.SMTPConfig{Host: "relay.plant.example"}, logger)
	assert.Error(t, err)

	mailer, err := NewSMTPMailer(config.SMTPConfig{Host: "relay.plant.example", Port: 587, From: "andon@plant.example"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "andon@plant.example", mailer.from)
}

func TestSMTPMailerRejectsBeforeDialing(t *testing.T) {
	mailer, err := NewSMTPMailer(config.SMTPConfig{Host: "127.0.0.1", Port: 1, From: "andon@plant.example"}, testutil.NewLogger(t))
	require.NoError(t, err)

	err = mailer.Send(context.Background(), &Message{Subject: "empty"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = mailer.Send(ctx, &Message{To: []string{"a@plant.example"}, Subject: "cancelled"})
	assert.ErrorIs(t, err, context.Canceled)
}

// silentRelay accepts SMTP connections and never sends a greeting.
func silentRelay(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			conn.Close()
		}
	})
	return ln.Addr().(*net.TCPAddr).Port
}

func TestSMTPMailerHonoursDeadlineOnStalledRelay(t *testing.T) {
	port := silentRelay(t)
	mailer, err := NewSMTPMailer(config.SMTPConfig{Host: "127.0.0.1", Port: port, From: "andon@plant.example"}, testutil.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = mailer.Send(ctx, &Message{To: []string{"lead@plant.example"}, Subject: "stalled", TextBody: "body"})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
