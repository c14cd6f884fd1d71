package alert

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/partline/internal/logger"
	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/report"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// --- Mocks ---

type recordingNotifier struct {
	name string
	mu   sync.Mutex
	got  []Alert
	err  error
	wait time.Duration
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) Notify(ctx context.Context, a Alert) error {
	if n.wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.wait):
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, a)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.got)
}

type mockSlackClient struct {
	mu      sync.Mutex
	channel string
	options []slackapi.MsgOption
	errs    []error
	calls   int
}

func (m *mockSlackClient) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return "", "", err
		}
	}
	m.channel = channelID
	m.options = options
	return channelID, "1234567890.123456", nil
}

type mockSession struct {
	channel string
	embed   *discordgo.MessageEmbed
	err     error
}

func (m *mockSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.channel = channelID
	m.embed = embed
	return &discordgo.Message{ID: "m1", ChannelID: channelID}, nil
}

func scrapEvent() (models.TraceEvent, models.Part) {
	in := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	ev := models.TraceEvent{
		ID: 7, PartID: "PZA-002", StationID: 3,
		EnteredAt: in, ExitedAt: in.Add(90 * time.Second), DurationSeconds: 90,
		Outcome: models.OutcomeScrap, Notes: "cracked housing",
	}
	p := models.Part{ID: "PZA-002", PartType: "X1", Lot: "L001", Status: models.PartScrapped, ReworkCount: 1}
	return ev, p
}

// --- Formatting ---

func TestFormatScrap(t *testing.T) {
	ev, p := scrapEvent()
	a := FormatScrap(ev, p)
	if a.Title != "Part scrapped: PZA-002" || a.Color != ColorError {
		t.Errorf("alert = %+v", a)
	}
	if !strings.Contains(a.Body, "station #3") || !strings.Contains(a.Body, "cracked housing") {
		t.Errorf("body = %q", a.Body)
	}
	if len(a.Fields) != 6 || a.Fields[0].Value != "PZA-002" || a.Fields[1].Value != "X1 / L001" {
		t.Errorf("fields = %+v", a.Fields)
	}
}

func TestFormatOverview(t *testing.T) {
	ov := &report.Overview{Date: "2025-06-02", TotalParts: 5, ScrapToday: 0}
	if a := FormatOverview(ov); a.Color != ColorSuccess || a.Title != "Line overview 2025-06-02" {
		t.Errorf("clean day = %+v", a)
	}
	ov.ScrapToday = 2
	if a := FormatOverview(ov); a.Color != ColorWarning || a.Fields[5].Value != "2" {
		t.Errorf("scrap day = %+v", a)
	}
}

// --- Dispatcher ---

func TestDispatcher_FanOut(t *testing.T) {
	a, b := &recordingNotifier{name: "a"}, &recordingNotifier{name: "b"}
	d := NewDispatcher(nil, a, b)
	if d.Len() != 2 {
		t.Fatalf("Len = %d", d.Len())
	}
	if err := d.Dispatch(context.Background(), Alert{Title: "x"}); err != nil {
		t.Fatal(err)
	}
	if a.count() != 1 || b.count() != 1 {
		t.Errorf("counts = %d, %d", a.count(), b.count())
	}
}

func TestDispatcher_FailureIsLoggedAndIsolated(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	bad := &recordingNotifier{name: "bad", err: errors.New("boom")}
	good := &recordingNotifier{name: "good"}
	d := NewDispatcher(logger.FromZap(zap.New(core)), bad, good)

	err := d.Dispatch(context.Background(), Alert{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "alert: bad: boom") {
		t.Errorf("err = %v", err)
	}
	if good.count() != 1 {
		t.Error("healthy notifier was skipped")
	}
	if logs.FilterMessage("alert delivery failed").Len() != 1 {
		t.Error("failure not logged")
	}
}

func TestDispatcher_Timeout(t *testing.T) {
	slow := &recordingNotifier{name: "slow", wait: time.Minute}
	d := NewDispatcher(nil, slow)
	d.timeout = 20 * time.Millisecond

	start := time.Now()
	err := d.Dispatch(context.Background(), Alert{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout not applied")
	}
}

func TestDispatcher_HookOnlyScrap(t *testing.T) {
	n := &recordingNotifier{name: "n"}
	d := NewDispatcher(nil, n)
	hook := d.Hook()

	ev, p := scrapEvent()
	hook(context.Background(), ev, p)
	for _, o := range []models.Outcome{models.OutcomeOK, models.OutcomeRework} {
		ev.Outcome = o
		hook(context.Background(), ev, p)
	}
	d.Wait()

	if n.count() != 1 {
		t.Fatalf("alerts = %d, want 1", n.count())
	}
	if n.got[0].Title != "Part scrapped: PZA-002" {
		t.Errorf("alert = %+v", n.got[0])
	}
}

func TestDispatcher_Sink(t *testing.T) {
	n := &recordingNotifier{name: "n"}
	d := NewDispatcher(nil, n)
	d.Sink()(context.Background(), &report.Overview{Date: "2025-06-02"})
	if n.count() != 1 || n.got[0].Title != "Line overview 2025-06-02" {
		t.Errorf("got = %+v", n.got)
	}
}

func TestDispatcher_NoNotifiers(t *testing.T) {
	d := NewDispatcher(nil)
	ev, p := scrapEvent()
	d.Hook()(context.Background(), ev, p)
	d.Wait()
	if err := d.Dispatch(context.Background(), Alert{}); err != nil {
		t.Errorf("err = %v", err)
	}
}

// --- Slack ---

func TestNewSlack_Validation(t *testing.T) {
	if _, err := NewSlack(SlackOpts{ChannelID: "C1"}); err == nil {
		t.Error("missing token should fail")
	}
	if _, err := NewSlack(SlackOpts{BotToken: "xoxb-1"}); err == nil {
		t.Error("missing channel should fail")
	}
	s, err := NewSlack(SlackOpts{BotToken: "xoxb-1", ChannelID: "C1"})
	if err != nil || s.Name() != "slack" {
		t.Errorf("NewSlack = %v, %v", s, err)
	}
}

func TestSlack_Notify(t *testing.T) {
	mock := &mockSlackClient{}
	s, _ := NewSlack(SlackOpts{ChannelID: "C_LINE", Client: mock})
	ev, p := scrapEvent()
	if err := s.Notify(context.Background(), FormatScrap(ev, p)); err != nil {
		t.Fatal(err)
	}
	if mock.channel != "C_LINE" || len(mock.options) != 2 {
		t.Errorf("posted to %q with %d options", mock.channel, len(mock.options))
	}
}

func TestSlack_RetriesRateLimit(t *testing.T) {
	mock := &mockSlackClient{errs: []error{&slackapi.RateLimitedError{RetryAfter: time.Millisecond}, nil}}
	s, _ := NewSlack(SlackOpts{ChannelID: "C1", Client: mock})
	if err := s.Notify(context.Background(), Alert{Title: "x"}); err != nil {
		t.Fatal(err)
	}
	if mock.calls != 2 {
		t.Errorf("calls = %d, want 2", mock.calls)
	}
}

func TestSlack_NonRateLimitErrorNotRetried(t *testing.T) {
	mock := &mockSlackClient{errs: []error{errors.New("channel_not_found")}}
	s, _ := NewSlack(SlackOpts{ChannelID: "C1", Client: mock})
	err := s.Notify(context.Background(), Alert{})
	if err == nil || !strings.Contains(err.Error(), "slack: post message") {
		t.Errorf("err = %v", err)
	}
	if mock.calls != 1 {
		t.Errorf("calls = %d, want 1", mock.calls)
	}
}

func TestSlackAttachment(t *testing.T) {
	att := slackAttachment(Alert{Title: "T", Body: "B", Color: ColorError, Fields: []Field{{Name: "k", Value: "v", Short: true}}})
	if att.Title != "T" || att.Text != "B" || att.Fallback != "T" || att.Color != ColorError {
		t.Errorf("attachment = %+v", att)
	}
	if len(att.Fields) != 1 || att.Fields[0].Title != "k" || !att.Fields[0].Short {
		t.Errorf("fields = %+v", att.Fields)
	}
}

// --- Discord ---

func TestNewDiscord_Validation(t *testing.T) {
	if _, err := NewDiscord(DiscordOpts{ChannelID: "1"}); err == nil {
		t.Error("missing token should fail")
	}
	if _, err := NewDiscord(DiscordOpts{Session: &mockSession{}}); err == nil {
		t.Error("missing channel should fail")
	}
}

func TestDiscord_Notify(t *testing.T) {
	mock := &mockSession{}
	d, err := NewDiscord(DiscordOpts{ChannelID: "chan-1", Session: mock})
	if err != nil {
		t.Fatal(err)
	}
	ev, p := scrapEvent()
	if err := d.Notify(context.Background(), FormatScrap(ev, p)); err != nil {
		t.Fatal(err)
	}
	if mock.channel != "chan-1" || mock.embed.Color != 0xe53935 || len(mock.embed.Fields) != 6 {
		t.Errorf("embed = %+v", mock.embed)
	}
	if !mock.embed.Fields[0].Inline {
		t.Error("short field should be inline")
	}

	mock.err = errors.New("missing access")
	if err := d.Notify(context.Background(), Alert{}); err == nil || !strings.Contains(err.Error(), "discord: send message") {
		t.Errorf("err = %v", err)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := map[string]int{
		"#36a64f": 0x36a64f,
		"2196f3":  0x2196f3,
		"":        0,
		"#zzz":    0,
	}
	for in, want := range tests {
		if got := parseHexColor(in); got != want {
			t.Errorf("parseHexColor(%q) = %x, want %x", in, got, want)
		}
	}
}
