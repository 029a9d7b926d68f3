package dispatch

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraktlabs/fencewatch/internal/alert"
	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/testutil"
)

// blockingSpeaker holds each Speak call until released.
type blockingSpeaker struct {
	calls   atomic.Int32
	started chan string
	release chan struct{}
}

func newBlockingSpeaker() *blockingSpeaker {
	return &blockingSpeaker{started: make(chan string, 8), release: make(chan struct{})}
}

func (s *blockingSpeaker) Speak(ctx context.Context, text, lang string) error {
	s.calls.Add(1)
	s.started <- text + "|" + lang
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil
}

type countingRecorder struct {
	mu      sync.Mutex
	sent    map[string]int
	failed  map[string]int
	dropped int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{sent: map[string]int{}, failed: map[string]int{}}
}

func (r *countingRecorder) AlertSent(c string)   { r.mu.Lock(); r.sent[c]++; r.mu.Unlock() }
func (r *countingRecorder) AlertFailed(c string) { r.mu.Lock(); r.failed[c]++; r.mu.Unlock() }
func (r *countingRecorder) SpeechDropped()       { r.mu.Lock(); r.dropped++; r.mu.Unlock() }

func (r *countingRecorder) snapshot() (sent, failed map[string]int, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyMap(r.sent), copyMap(r.failed), r.dropped
}

func copyMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var localAlert = alert.Alert{Name: "voz", Type: alert.TypeLocal, Recipient: "es", ContentTemplate: "Cuidado en [fence]"}

func TestLocalGuardDropsConcurrentSpeech(t *testing.T) {
	speaker := newBlockingSpeaker()
	rec := newCountingRecorder()
	d := New(Config{Speaker: speaker, Recorder: rec, Cooldown: 10 * time.Millisecond})
	t.Cleanup(d.Close)

	d.Dispatch(t.Context(), localAlert, "cama-1", Evidence{})
	assert.Equal(t, "Cuidado en cama-1|es", <-speaker.started)

	d.Dispatch(t.Context(), localAlert, "cama-1", Evidence{})
	d.Dispatch(t.Context(), localAlert, "cama-2", Evidence{})

	close(speaker.release)
	require.Eventually(t, func() bool { return !d.Speaking() }, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), speaker.calls.Load())
	sent, _, dropped := rec.snapshot()
	assert.Equal(t, 1, sent["local"])
	assert.Equal(t, 2, dropped)
}

func TestLocalGuardHeldDuringCooldown(t *testing.T) {
	speaker := newBlockingSpeaker()
	close(speaker.release)
	d := New(Config{Speaker: speaker, Cooldown: 200 * time.Millisecond})
	t.Cleanup(d.Close)

	d.Dispatch(t.Context(), localAlert, "a", Evidence{})
	<-speaker.started

	// speech has finished but the cooldown still holds the guard
	time.Sleep(20 * time.Millisecond)
	d.Dispatch(t.Context(), localAlert, "b", Evidence{})
	assert.Equal(t, int32(1), speaker.calls.Load())

	require.Eventually(t, func() bool { return !d.Speaking() }, time.Second, 10*time.Millisecond)
	d.Dispatch(t.Context(), localAlert, "c", Evidence{})
	<-speaker.started
	assert.Equal(t, int32(2), speaker.calls.Load())
}

func TestDispatchDoesNotBlockOnSpeech(t *testing.T) {
	speaker := newBlockingSpeaker()
	d := New(Config{Speaker: speaker})
	t.Cleanup(func() {
		close(speaker.release)
		d.Close()
	})

	done := make(chan struct{})
	go func() {
		d.Dispatch(t.Context(), localAlert, "a", Evidence{})
		close(done)
	}()

	testutil.WaitForChannel(t, done, testutil.ShortTestTimeout, "Dispatch blocked on speech")
}

type fakeMail struct {
	mu          sync.Mutex
	channelID   string
	recipients  []string
	subject     string
	body        string
	attachments []Attachment
	err         error
}

func (m *fakeMail) Send(_ context.Context, channelID string, recipients []string, subject, body string, attachments []Attachment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelID, m.recipients, m.subject, m.body, m.attachments = channelID, recipients, subject, body, attachments
	return `{"ok":true}`, m.err
}

func TestMailDispatch(t *testing.T) {
	t.Parallel()
	mail := &fakeMail{}
	rec := newCountingRecorder()
	d := New(Config{Mail: mail, Recorder: rec})

	a := alert.Alert{
		Name: "m", Type: alert.TypeMail, ChannelID: "AKfy", Subject: "Fall risk",
		Recipient: "a@x.org, b@x.org", ContentTemplate: "[fence] / [fence]",
	}
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0}
	d.Dispatch(t.Context(), a, "bed", Evidence{Base64: base64.StdEncoding.EncodeToString(jpeg)})
	d.Wait()

	assert.Equal(t, "AKfy", mail.channelID)
	assert.Equal(t, []string{"a@x.org", "b@x.org"}, mail.recipients)
	assert.Equal(t, "bed / bed", mail.body)
	require.Len(t, mail.attachments, 1)
	assert.Equal(t, "evidence.jpg", mail.attachments[0].Name)
	assert.Equal(t, "image/jpeg", mail.attachments[0].ContentType)
	assert.Equal(t, jpeg, mail.attachments[0].Data)

	sent, _, _ := rec.snapshot()
	assert.Equal(t, 1, sent["mail"])
}

func TestMailWithoutEvidence(t *testing.T) {
	t.Parallel()
	mail := &fakeMail{}
	d := New(Config{Mail: mail})

	a := alert.Alert{Type: alert.TypeMail, ChannelID: "x", Recipient: "a@x.org", ContentTemplate: "[fence]"}
	d.Dispatch(t.Context(), a, "bed", Evidence{})
	d.Wait()
	assert.Empty(t, mail.attachments)

	d.Dispatch(t.Context(), a, "bed", Evidence{Base64: "%%%not base64"})
	d.Wait()
	assert.Empty(t, mail.attachments)
	assert.Equal(t, "bed", mail.body)
}

func TestChannelErrorsAreSwallowed(t *testing.T) {
	t.Parallel()
	mail := &fakeMail{err: errors.NewStd("relay down")}
	rec := newCountingRecorder()
	d := New(Config{Mail: mail, Recorder: rec})

	a := alert.Alert{Type: alert.TypeMail, ChannelID: "x", Recipient: "a@x.org", ContentTemplate: "[fence]"}
	assert.NotPanics(t, func() { d.Dispatch(t.Context(), a, "bed", Evidence{}) })

	d.Dispatch(t.Context(), alert.Alert{Type: alert.TypeMessaging, ContentTemplate: "[fence]"}, "bed", Evidence{})
	d.Wait()

	_, failed, _ := rec.snapshot()
	assert.Equal(t, 1, failed["mail"])
	assert.Equal(t, 1, failed["messaging"], "missing relay counts as failure")
}

type fakeMessaging struct {
	channelID, chatID, body string
	photo                   *Attachment
}

func (m *fakeMessaging) Send(_ context.Context, channelID, chatID, body string, photo *Attachment) (string, error) {
	m.channelID, m.chatID, m.body, m.photo = channelID, chatID, body, photo
	return "ok", nil
}

func TestMessagingDispatchSendsBodyAsCaption(t *testing.T) {
	t.Parallel()
	msg := &fakeMessaging{}
	d := New(Config{Messaging: msg})

	a := alert.Alert{Type: alert.TypeMessaging, ChannelID: "123:abc", Recipient: "-100", Subject: "Alert", ContentTemplate: "Check [fence]"}
	d.Dispatch(t.Context(), a, "bed", Evidence{Base64: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte{1, 2})})
	d.Wait()

	assert.Equal(t, "123:abc", msg.channelID)
	assert.Equal(t, "-100", msg.chatID)
	assert.Equal(t, "Check bed", msg.body, "subject is not part of the caption")
	require.NotNil(t, msg.photo)
	assert.Equal(t, []byte{1, 2}, msg.photo.Data)
}

func TestMessagingRouter(t *testing.T) {
	t.Parallel()
	tg, sh := &fakeMessaging{}, &fakeMessaging{}
	r := MessagingRouter{Telegram: tg, Shoutrrr: sh}

	_, err := r.Send(t.Context(), "discord://token@channel", "", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "discord://token@channel", sh.channelID)
	assert.Empty(t, tg.channelID)

	_, err = r.Send(t.Context(), "123:abc", "42", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "123:abc", tg.channelID)
}

// slowMail holds every Send until released.
type slowMail struct {
	started chan struct{}
	release chan struct{}
}

func (m *slowMail) Send(ctx context.Context, _ string, _ []string, _, _ string, _ []Attachment) (string, error) {
	m.started <- struct{}{}
	select {
	case <-m.release:
	case <-ctx.Done():
	}
	return "ok", nil
}

func TestDispatchDoesNotBlockOnRelay(t *testing.T) {
	mail := &slowMail{started: make(chan struct{}, 2), release: make(chan struct{})}
	rec := newCountingRecorder()
	d := New(Config{Mail: mail, Recorder: rec})

	a := alert.Alert{Type: alert.TypeMail, ChannelID: "x", Recipient: "a@x.org", ContentTemplate: "[fence]"}
	done := make(chan struct{})
	go func() {
		d.Dispatch(t.Context(), a, "bed", Evidence{})
		d.Dispatch(t.Context(), a, "bed", Evidence{})
		close(done)
	}()
	testutil.WaitForChannel(t, done, testutil.ShortTestTimeout, "Dispatch blocked on the mail relay")

	// mail is unguarded: both deliveries are in flight together
	testutil.Receive(t, mail.started, testutil.DefaultTestTimeout, "first delivery not started")
	testutil.Receive(t, mail.started, testutil.DefaultTestTimeout, "second delivery not started")

	close(mail.release)
	d.Close()
	sent, _, _ := rec.snapshot()
	assert.Equal(t, 2, sent["mail"], "Close waits for in-flight deliveries")
}
