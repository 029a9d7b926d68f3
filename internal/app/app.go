// Package app assembles the fencewatch services from settings and runs them.
package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fraktlabs/fencewatch/internal/alert"
	"github.com/fraktlabs/fencewatch/internal/api"
	v1 "github.com/fraktlabs/fencewatch/internal/api/v1"
	"github.com/fraktlabs/fencewatch/internal/capture"
	"github.com/fraktlabs/fencewatch/internal/conf"
	"github.com/fraktlabs/fencewatch/internal/datastore"
	"github.com/fraktlabs/fencewatch/internal/dispatch"
	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/events"
	"github.com/fraktlabs/fencewatch/internal/fence"
	"github.com/fraktlabs/fencewatch/internal/logger"
	"github.com/fraktlabs/fencewatch/internal/monitor"
	"github.com/fraktlabs/fencewatch/internal/mqtt"
	"github.com/fraktlabs/fencewatch/internal/observability"
	"github.com/fraktlabs/fencewatch/internal/remote"
	"github.com/fraktlabs/fencewatch/internal/snapshot"
	"github.com/fraktlabs/fencewatch/internal/source"
	"github.com/fraktlabs/fencewatch/internal/vision"
)

const (
	busShutdownTimeout = 5 * time.Second
	mqttConnectTimeout = 30 * time.Second
)

// App holds the wired services. Build one with New and release it with Close.
type App struct {
	Settings *conf.Settings
	Version  string

	Metrics    *observability.Metrics
	Bus        *events.Bus
	Fences     *fence.Store
	Alerts     *alert.Catalog
	Sources    *source.Registry
	Vision     *vision.Client
	Dispatcher *dispatch.Dispatcher
	Overlays   *monitor.OverlayStore
	Monitor    *monitor.Monitor

	db               *datastore.Store
	fencePersistence fence.Persistence
	alertPersistence alert.Persistence
	redis            *snapshot.RedisStore
	mqtt             mqtt.Client
}

// New builds every service named in settings, loads fences and alerts and
// restores the source registry. Nothing is started.
func New(ctx context.Context, settings *conf.Settings, version string) (*App, error) {
	a := &App{Settings: settings, Version: version}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}
	a.Metrics = m

	a.Bus = events.NewBus(events.DefaultConfig())
	if err := m.AttachEventBus(a.Bus); err != nil {
		return nil, err
	}
	if err := a.initMQTT(); err != nil {
		return nil, err
	}

	if err := a.initPersistence(); err != nil {
		return nil, err
	}
	a.Fences = fence.NewStore(a.fencePersistence, a.Bus)
	a.Alerts = alert.NewCatalog(a.alertPersistence, a.Bus)
	a.Sources = source.NewRegistry(a.snapshotStore(),
		source.WithPublisher(a.Bus),
		source.WithFenceChecker(a.Fences.Exists))
	a.Fences.SetDetacher(a.Sources)
	a.Alerts.SetDetacher(a.Sources)

	if err := a.Fences.Load(ctx); err != nil {
		return nil, err
	}
	if err := a.Alerts.Load(ctx); err != nil {
		return nil, err
	}
	a.Sources.Restore(ctx)

	a.Vision = vision.NewClient(settings.Vision.URL, settings.Vision.Timeout)
	a.Dispatcher = newDispatcher(settings, m)
	a.Overlays = monitor.NewOverlayStore()
	a.Monitor = monitor.New(monitor.Config{
		Sources: a.Sources,
		Fences:  a.Fences,
		Alerts:  a.Alerts,
		Capture: capture.NewFFmpegSource(capture.Config{
			FfmpegPath:    settings.Capture.FfmpegPath,
			Timeout:       settings.Capture.Timeout,
			InputFormat:   settings.Capture.InputFormat,
			RTSPTransport: settings.Capture.RTSPTransport,
		}),
		Pose:          a.Vision,
		Dispatcher:    a.Dispatcher,
		Renderer:      a.Overlays,
		Publisher:     a.Bus,
		Recorder:      m.Pipeline,
		IdleInterval:  settings.Monitor.IdleInterval,
		FrameInterval: settings.Monitor.FrameInterval,
		CaptureSize:   monitor.Size{Width: settings.Monitor.Capture.Width, Height: settings.Monitor.Capture.Height},
		EvidenceSize:  monitor.Size{Width: settings.Monitor.Evidence.Width, Height: settings.Monitor.Evidence.Height},
		DefaultAlert:  settings.Monitor.DefaultAlert,
	})

	GetLogger().Info("services ready",
		logger.String("persistence", settings.Persistence.Backend),
		logger.String("session", settings.Session.Backend),
		logger.Int("fences", len(a.Fences.List())),
		logger.Int("alerts", len(a.Alerts.List())),
		logger.Int("sources", len(a.Sources.List())))
	ok = true
	return a, nil
}

func (a *App) initPersistence() error {
	s := a.Settings.Persistence
	if s.Backend == conf.BackendRemote {
		rc := remote.NewClient(s.Remote.URL, s.Remote.Timeout)
		a.fencePersistence = fence.NewRemoteClient(rc)
		a.alertPersistence = alert.NewRemoteClient(rc)
		return nil
	}
	db, err := datastore.Open(&s, a.Metrics.Storage)
	if err != nil {
		return err
	}
	a.db = db
	a.fencePersistence = db.Fences()
	a.alertPersistence = db.Alerts()
	return nil
}

func (a *App) snapshotStore() snapshot.Store {
	s := a.Settings.Session
	if s.Backend == conf.SessionRedis {
		a.redis = snapshot.NewRedisStore(snapshot.RedisOptions{
			Address:  s.Redis.Address,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
			TTL:      s.Redis.TTL,
		})
		return a.redis
	}
	return snapshot.NewMemoryStore(s.Memory.TTL, s.Memory.File)
}

func (a *App) initMQTT() error {
	s := a.Settings.MQTT
	if !s.Enabled {
		return nil
	}
	cfg := mqtt.DefaultConfig()
	cfg.Broker = s.Broker
	cfg.Username = s.Username
	cfg.Password = s.Password
	cfg.QoS = s.QoS
	cfg.Retain = s.Retain
	if s.Topic != "" {
		cfg.Topic = s.Topic
	}
	if s.ClientID != "" {
		cfg.ClientID = s.ClientID
	}
	a.mqtt = mqtt.NewClient(cfg, a.Metrics.MQTT)
	return a.Bus.RegisterConsumer(mqtt.NewPublisher(a.mqtt, cfg.Topic, cfg.PublishTimeout))
}

func newDispatcher(s *conf.Settings, m *observability.Metrics) *dispatch.Dispatcher {
	d := s.Dispatch
	return dispatch.New(dispatch.Config{
		Speaker: dispatch.NewCommandSpeaker(d.Speech.Command, d.Speech.Args, d.Speech.Rate),
		Mail:    dispatch.NewAppsScriptRelay(d.Mail.URL, d.Mail.Timeout),
		Messaging: dispatch.MessagingRouter{
			Telegram: dispatch.NewTelegramRelay(d.Messaging.URL, d.Messaging.Timeout),
			Shoutrrr: dispatch.NewShoutrrrRelay(d.Messaging.Timeout),
		},
		Recorder: m.Dispatch,
		Cooldown: d.Speech.Cooldown,
	})
}

// NewServer builds the HTTP API over the app's services.
func (a *App) NewServer() (*api.Server, error) {
	deps := v1.Deps{
		Sources:    a.Sources,
		Fences:     a.Fences,
		Alerts:     a.Alerts,
		Dispatcher: a.Dispatcher,
		Segmenter:  a.Vision,
		Monitor:    a.Monitor,
		Overlays:   a.Overlays,
		Events:     a.Bus,
		Threshold:  uint8(a.Settings.Monitor.Threshold),
		Version:    a.Version,
		HostDisk:   "/",
	}
	// A remote-backed instance must not serve its upstream's collections.
	if a.db != nil {
		deps.FencePersistence = a.fencePersistence
		deps.AlertPersistence = a.alertPersistence
	}

	var opts []api.ServerOption
	if a.Settings.Telemetry.Metrics {
		opts = append(opts, api.WithMetrics(a.Metrics))
	}
	return api.New(api.ConfigFromSettings(a.Settings), deps, opts...)
}

// Serve runs the monitor, the HTTP API and the MQTT connection until ctx is
// done or one of them fails.
func (a *App) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.mqtt != nil {
		g.Go(func() error {
			connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
			defer cancel()
			// paho keeps retrying in the background after a failed first attempt
			if err := a.mqtt.Connect(connectCtx); err != nil {
				GetLogger().Warn("mqtt connect failed", logger.Error(err))
			}
			return nil
		})
	}

	if a.Settings.WebServer.Enabled {
		srv, err := a.NewServer()
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Run(ctx) })
	}

	g.Go(func() error { return a.Monitor.Run(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close stops background work and releases connections. It is safe to call
// on a partially built App.
func (a *App) Close() {
	log := GetLogger()
	if a.Dispatcher != nil {
		a.Dispatcher.Close()
	}
	if a.Bus != nil {
		if err := a.Bus.Shutdown(busShutdownTimeout); err != nil {
			log.Warn("event bus shutdown incomplete", logger.Error(err))
		}
	}
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn("failed to close redis", logger.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn("failed to close database", logger.Error(err))
		}
	}
}

// GetLogger returns the app module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}
