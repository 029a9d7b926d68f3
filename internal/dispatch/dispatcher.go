package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fraktlabs/fencewatch/internal/alert"
	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/logger"
)

// DefaultCooldown keeps the voice channel claimed after speech ends.
const DefaultCooldown = 1500 * time.Millisecond

// Config wires a Dispatcher to its channels. Nil channels fail at send time.
type Config struct {
	Speaker   Speaker
	Mail      MailRelay
	Messaging MessagingRelay
	Recorder  Recorder
	Cooldown  time.Duration
}

// Dispatcher routes rendered alerts to their channel. Every delivery runs in
// the background so callers never wait on a relay. The local voice channel
// is single-flight: a request arriving while speech is in progress, or within
// the cooldown after it, is dropped. Mail and messaging are not guarded.
type Dispatcher struct {
	speaker   Speaker
	mail      MailRelay
	messaging MessagingRelay
	recorder  Recorder
	cooldown  time.Duration

	speaking atomic.Bool
	wg       sync.WaitGroup // speech, cooldown included
	sends    sync.WaitGroup // mail and messaging
	done     chan struct{}
	closed   sync.Once
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		speaker:   cfg.Speaker,
		mail:      cfg.Mail,
		messaging: cfg.Messaging,
		recorder:  cfg.Recorder,
		cooldown:  cfg.Cooldown,
		done:      make(chan struct{}),
	}
	if d.recorder == nil {
		d.recorder = nopRecorder{}
	}
	if d.cooldown <= 0 {
		d.cooldown = DefaultCooldown
	}
	return d
}

// Dispatch renders a for fenceName and starts its delivery. It returns
// without waiting; errors are logged and counted, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, a alert.Alert, fenceName string, evidence Evidence) {
	body := a.Render(fenceName)
	log := GetLogger().With(
		logger.String("alert", a.Name),
		logger.String("type", string(a.Type)),
		logger.String("fence", fenceName))

	switch a.Type {
	case alert.TypeLocal:
		d.speak(ctx, a, body, log)
	case alert.TypeMail:
		d.background(ctx, func(ctx context.Context) { d.sendMail(ctx, a, body, evidence, log) })
	case alert.TypeMessaging:
		d.background(ctx, func(ctx context.Context) { d.sendMessage(ctx, a, body, evidence, log) })
	default:
		log.Warn("alert has unknown type, nothing sent")
	}
}

func (d *Dispatcher) speak(ctx context.Context, a alert.Alert, body string, log logger.Logger) {
	if d.speaker == nil {
		d.fail(string(alert.TypeLocal), errors.NewStd("no speaker configured"), log)
		return
	}
	if !d.speaking.CompareAndSwap(false, true) {
		d.recorder.SpeechDropped()
		log.Debug("voice channel busy, alert dropped")
		return
	}

	lang := a.Language().String()
	speechCtx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.speaking.Store(false)

		if err := d.speaker.Speak(speechCtx, body, lang); err != nil {
			d.fail(string(alert.TypeLocal), err, log)
		} else {
			d.recorder.AlertSent(string(alert.TypeLocal))
			log.Info("alert spoken", logger.String("lang", lang))
		}

		select {
		case <-time.After(d.cooldown):
		case <-d.done:
		}
	}()
}

// background runs send detached from the caller's cancellation; the relays
// bound each request with their own timeout.
func (d *Dispatcher) background(ctx context.Context, send func(context.Context)) {
	sendCtx := context.WithoutCancel(ctx)
	d.sends.Add(1)
	go func() {
		defer d.sends.Done()
		send(sendCtx)
	}()
}

func (d *Dispatcher) sendMail(ctx context.Context, a alert.Alert, body string, evidence Evidence, log logger.Logger) {
	channel := string(alert.TypeMail)
	if d.mail == nil {
		d.fail(channel, errors.NewStd("no mail relay configured"), log)
		return
	}

	var attachments []Attachment
	if att := d.attachment(evidence, log); att != nil {
		attachments = append(attachments, *att)
	}

	resp, err := d.mail.Send(ctx, a.ChannelID, a.Recipients(), a.Subject, body, attachments)
	if err != nil {
		d.fail(channel, err, log)
		return
	}
	d.recorder.AlertSent(channel)
	log.Info("alert mailed",
		logger.Int("recipients", len(a.Recipients())),
		logger.String("response", resp))
}

func (d *Dispatcher) sendMessage(ctx context.Context, a alert.Alert, body string, evidence Evidence, log logger.Logger) {
	channel := string(alert.TypeMessaging)
	if d.messaging == nil {
		d.fail(channel, errors.NewStd("no messaging relay configured"), log)
		return
	}

	resp, err := d.messaging.Send(ctx, a.ChannelID, a.Recipient, body, d.attachment(evidence, log))
	if err != nil {
		d.fail(channel, err, log)
		return
	}
	d.recorder.AlertSent(channel)
	log.Info("alert messaged", logger.String("response", resp))
}

func (d *Dispatcher) attachment(evidence Evidence, log logger.Logger) *Attachment {
	att, err := evidence.Attachment()
	if err != nil {
		log.Warn("evidence not decodable, sending without attachment", logger.Error(err))
		return nil
	}
	return att
}

func (d *Dispatcher) fail(channel string, err error, log logger.Logger) {
	d.recorder.AlertFailed(channel)
	ee := errors.New(err).
		Category(errors.CategoryChannel).
		Context("channel", channel).
		Build()
	log.Error("alert delivery failed", logger.Error(ee))
}

// Speaking reports whether the voice channel is claimed.
func (d *Dispatcher) Speaking() bool {
	return d.speaking.Load()
}

// Wait blocks until every mail and messaging delivery started so far has
// finished. Speech is not waited for.
func (d *Dispatcher) Wait() {
	d.sends.Wait()
}

// Close ends pending cooldowns and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.closed.Do(func() { close(d.done) })
	d.sends.Wait()
	d.wg.Wait()
}
