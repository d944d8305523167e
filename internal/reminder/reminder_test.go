package reminder

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/JarvisScienz/progress-tracker/internal/config"
	"github.com/JarvisScienz/progress-tracker/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticSource struct {
	reminders []domain.Reminder
	err       error
}

func (s staticSource) DueReminders(context.Context) ([]domain.Reminder, error) {
	return s.reminders, s.err
}

type fakeMailer struct {
	mu     sync.Mutex
	failTo map[string]bool
	sent   []Email
}

func (m *fakeMailer) Send(_ context.Context, email Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[email.To] {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func reminders() []domain.Reminder {
	return []domain.Reminder{
		{UserID: "u1", Username: "Ada", Email: "ada@example.com", ActivityID: "a1", Title: "Read", Description: "20 pages"},
		{UserID: "u2", Email: "bob@example.com", ActivityID: "a2", Title: "Run"},
		{UserID: "u3", Username: "Cy", Email: "cy@example.com", ActivityID: "a3", Title: "Floss"},
	}
}

func TestSweeperContinuesPastFailures(t *testing.T) {
	mailer := &fakeMailer{failTo: map[string]bool{"bob@example.com": true}}
	sweeper := NewSweeper(staticSource{reminders: reminders()}, mailer, zaptest.NewLogger(t))

	res, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Due: 3, Sent: 2, Failed: 1}, res)
	require.Len(t, mailer.sent, 2)
	require.Equal(t, "ada@example.com", mailer.sent[0].To)
	require.Equal(t, "cy@example.com", mailer.sent[1].To)
}

func TestSweeperReturnsSourceError(t *testing.T) {
	sweeper := NewSweeper(staticSource{err: errors.New("db down")}, &fakeMailer{}, nil)
	_, err := sweeper.Run(context.Background())
	require.EqualError(t, err, "db down")
}

func TestRenderEscapesUserContent(t *testing.T) {
	email, err := Render(domain.Reminder{
		Username:    "Ada",
		Email:       "ada@example.com",
		Title:       "Read <b>daily</b>",
		Description: "pages & notes",
	})
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", email.To)
	require.Equal(t, "Reminder: Read <b>daily</b>", email.Subject)
	require.Contains(t, email.HTML, "Hello Ada,")
	require.Contains(t, email.HTML, "<strong>Read &lt;b&gt;daily&lt;/b&gt;</strong>")
	require.Contains(t, email.HTML, "Description: pages &amp; notes")

	anonymous, err := Render(domain.Reminder{Email: "x@example.com", Title: "Run"})
	require.NoError(t, err)
	require.Contains(t, anonymous.HTML, "Hello there,")
	require.NotContains(t, anonymous.HTML, "Description:")
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	mailer := NewSMTPMailer(config.SMTPConfig{From: "reminders@example.com", FromName: "Progress Tracker"})
	mailer.now = func() time.Time { return time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC) }

	msg, err := mailer.buildMessage(Email{To: "ada@example.com", ToName: "Ada", Subject: "Reminder: Read", HTML: "<p>hi</p>"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	head, _, ok := strings.Cut(raw, "\r\n\r\n")
	require.True(t, ok)
	require.Contains(t, raw, "<p>hi</p>")
	require.Contains(t, raw, "Content-Type: text/html")
	require.Contains(t, head, `From: "Progress Tracker" <reminders@example.com>`)
	require.Contains(t, head, `To: "Ada" <ada@example.com>`)
	require.Contains(t, head, "Subject: Reminder: Read")
	require.Contains(t, head, "Date: Thu, 14 Mar 2024 09:00:00 +0000")
}

func TestSMTPMailerRejectsBadRecipient(t *testing.T) {
	mailer := NewSMTPMailer(config.SMTPConfig{From: "reminders@example.com"})

	_, err := mailer.buildMessage(Email{To: "not an address", Subject: "Reminder: Read"})
	require.Error(t, err)
}

func TestNewSchedulerRejectsInvalidSpec(t *testing.T) {
	_, err := NewScheduler("not a schedule", time.UTC, NewSweeper(staticSource{}, &fakeMailer{}, nil), nil)
	require.Error(t, err)
}

func TestSchedulerDefaultsToNineAM(t *testing.T) {
	s, err := NewScheduler("", time.UTC, NewSweeper(staticSource{}, &fakeMailer{}, nil), nil)
	require.NoError(t, err)
	require.Equal(t, DefaultSchedule, s.spec)
	require.True(t, s.Next().IsZero())

	require.NoError(t, s.Start())
	next := s.Next()
	require.Equal(t, 9, next.Hour())
	require.Equal(t, 0, next.Minute())
	require.NoError(t, s.Stop(context.Background()))
}

func TestSchedulerRunsSweepAndStopsCleanly(t *testing.T) {
	mailer := &fakeMailer{}
	sweeper := NewSweeper(staticSource{reminders: reminders()[:1]}, mailer, zaptest.NewLogger(t))
	s, err := NewScheduler("@every 1s", time.UTC, sweeper, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.Eventually(t, func() bool { return mailer.count() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
