package app

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"emfpager/internal/announce"
	"emfpager/internal/config"
	"emfpager/internal/dapnet"
	"emfpager/internal/delivery"
	"emfpager/internal/dispatch"
	"emfpager/internal/eventbus"
	"emfpager/internal/metrics"
	"emfpager/internal/runtime/supervisor"
	"emfpager/internal/schedule"
	"emfpager/internal/storage"
	"emfpager/internal/transport/telegram"
	"emfpager/internal/venue"
	"emfpager/pkg/logx"
	"emfpager/pkg/systemd"
)

// Version is reported by /status and the version command. Set with -ldflags.
var Version = "dev"

type App struct {
	cfgm *config.Manager
	cfg  *config.Config

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	dapnet    *dapnet.Client
	announcer *schedule.Announcer
	tr        *announce.Translator
	loop      *dispatch.Loop
	recent    *metrics.Recent
	obs       *metrics.Server
	sd        systemd.Notifier

	dryRun atomic.Bool
	now    func() time.Time

	sup *supervisor.Supervisor
}

// New loads the config through cfgm and builds every component. Nothing
// touches the network until Run.
func New(cfgm *config.Manager) (*App, error) {
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// The chat sink is optional; a nil sender keeps it off.
	var sender logx.ChatSender
	if strings.TrimSpace(cfg.Telegram.Token) != "" {
		tg, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token})
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		sender = tg
	}
	logSvc, log := logx.New(mapLogConfig(cfg), sender)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	appLog := log.With(logx.String("comp", "app"))

	a := &App{cfgm: cfgm, cfg: cfg, log: appLog, logs: logSvc, bus: eventbus.New(), now: time.Now}
	a.dryRun.Store(cfg.DryRun)

	fail := func(err error) (*App, error) {
		if a.store != nil {
			_ = a.store.Close()
		}
		_ = logSvc.Close()
		return nil, err
	}

	a.dapnet, err = dapnet.New(mapDAPNETConfig(cfg))
	if err != nil {
		return fail(err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return fail(err)
	}
	src, err := schedule.NewClient(cfg.APIURL, loc, config.DurationOr(cfg.Schedule.Timeout, 15*time.Second))
	if err != nil {
		return fail(err)
	}

	a.store, err = storage.Open(mapStorageConfig(cfg), log.With(logx.String("comp", "storage")))
	if err != nil {
		return fail(fmt.Errorf("storage: %w", err))
	}
	var cache schedule.Snapshotter
	if a.store != nil {
		cache = a.store
		appLog.Info("schedule cache enabled", logx.String("driver", cfg.Storage.Driver))
	}

	set, err := mapAnnouncerSettings(cfg)
	if err != nil {
		return fail(err)
	}
	a.announcer, err = schedule.NewAnnouncer(set, src, cache, log.With(logx.String("comp", "schedule")))
	if err != nil {
		return fail(err)
	}

	a.tr, err = announce.NewTranslator(cfg.AnnounceMode(), venue.Default(), log.With(logx.String("comp", "translate")))
	if err != nil {
		return fail(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	counter, err := metrics.NewAnnouncements(reg)
	if err != nil {
		return fail(err)
	}

	dm, err := delivery.NewManager(a.dapnet, counter, log.With(logx.String("comp", "delivery")), delivery.Options{
		AttemptTimeout: config.DurationOr(cfg.DAPNET.Timeout, delivery.DefaultAttemptTimeout),
		DryRun:         a.dryRun.Load,
		Bus:            a.bus,
	})
	if err != nil {
		return fail(err)
	}

	a.loop, err = dispatch.New(a.announcer, a.tr, dm, log.With(logx.String("comp", "dispatch")))
	if err != nil {
		return fail(err)
	}

	a.recent = metrics.NewRecent(0)
	a.obs = metrics.NewServer(mapServerConfig(cfg), metrics.Deps{
		Gatherer: reg,
		Recent:   a.recent,
		Info:     a.statusInfo,
	}, log.With(logx.String("comp", "observability")))

	return a, nil
}

func (a *App) statusInfo() map[string]any {
	info := map[string]any{
		"version": Version,
		"mode":    string(a.tr.Mode().Kind),
		"dry_run": a.dryRun.Load(),
		"events":  a.announcer.Len(),
		"loop":    a.loop.Stats(),
	}
	if a.sup != nil {
		info["goroutines"] = a.sup.Active()
	}
	return info
}

// statusLine is the one-line summary shown by systemctl status.
func statusLine(st dispatch.Stats) string {
	return fmt.Sprintf("%d events, %d delivered, %d failed, %d skipped",
		st.Events, st.Delivered, st.Failed, st.Skipped)
}

// stopReason classifies why the dispatch loop returned.
func stopReason(ctx context.Context, loopErr, supErr error) StopReason {
	switch {
	case loopErr != nil || supErr != nil:
		return StopFatalError
	case ctx.Err() != nil:
		return StopSignal
	default:
		return StopAppStop
	}
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Run starts the background services, sends the startup page and runs the
// dispatch loop until ctx is cancelled or a supervised goroutine fails. It
// always stops the app before returning.
func (a *App) Run(ctx context.Context) error {
	a.Start(ctx)

	a.pageStartup(a.sup.Context())
	if _, err := a.sd.Ready(); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	}
	a.log.Info("announcer started",
		logx.String("mode", string(a.tr.Mode().Kind)),
		logx.Bool("dry_run", a.dryRun.Load()),
		logx.Duration("offset", a.cfg.PreEventOffset()),
	)

	loopErr := a.loop.Run(a.sup.Context())

	reason := stopReason(ctx, loopErr, a.Err())
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	_ = a.Stop(stopCtx, reason)

	if loopErr != nil {
		return loopErr
	}
	return a.Err()
}

// Start launches the supervised background goroutines.
func (a *App) Start(ctx context.Context) {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.sup.Go0("status.recent", func(c context.Context) { a.recent.Run(c, a.bus) })

	// Keep this debug-level; delivery outcomes are already logged by the manager.
	events, unsub := a.bus.Subscribe(64)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				if _, err := a.sd.Status(statusLine(a.loop.Stats())); err != nil {
					a.log.Debug("systemd notify failed", logx.Err(err))
				}
			}
		}
	})

	if a.cfg.Systemd.Watchdog {
		a.sup.Go0("systemd.watchdog", func(c context.Context) {
			if err := a.sd.Watchdog(c); err != nil {
				a.log.Warn("systemd watchdog stopped", logx.Err(err))
			}
		})
	}

	// No-op when observability is disabled.
	a.obs.Start(a.sup.Context())

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
}

// applyConfig applies the live sections of newCfg. Everything else needs a
// restart and is only reported.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	ch := config.SummarizeChange(oldCfg, newCfg)
	if ch.Empty() {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	if _, err := a.sd.Reloading(); err != nil {
		a.log.Debug("systemd notify failed", logx.Err(err))
	}
	defer func() { _, _ = a.sd.Ready() }()

	if ch.Live(config.SectionLogging) {
		a.logs.Apply(mapLogConfig(newCfg))
	}
	if ch.Live(config.SectionDryRun) {
		a.dryRun.Store(newCfg.DryRun)
		a.log.Info("dry-run toggled", logx.Bool("dry_run", newCfg.DryRun))
	}
	if len(ch.Restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(ch.Restart, ",")))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Changed, ","))}, ch.Fields...)
	a.log.Info("config reloaded", fields...)
}

// startupText is the startup page text, e.g. "M0ABC: EMF sched. anncr. start at 16 10:00 UTC".
// The time is always UTC, whatever schedule.timezone says.
func startupText(user string, now time.Time) string {
	return fmt.Sprintf("%s: EMF sched. anncr. start at %s", user, now.UTC().Format("02 15:04 MST"))
}

// pageStartup pages the configured DAPNET user once so the operator sees the
// announcer come up. It is sent even in dry-run; failure is not fatal.
func (a *App) pageStartup(ctx context.Context) {
	user := a.dapnet.Username()
	call, err := dapnet.NewCall([]string{user}, a.cfg.DAPNET.TransmitterGroups, startupText(user, a.now()))
	if err != nil {
		a.log.Warn("startup page not sent", logx.Err(err))
		return
	}
	pctx, cancel := context.WithTimeout(ctx, config.DurationOr(a.cfg.DAPNET.Timeout, 15*time.Second))
	defer cancel()
	if err := a.dapnet.SendCall(pctx, call); err != nil {
		a.log.Warn("startup page failed", logx.String("recipient", user), logx.Err(err))
		return
	}
	a.log.Info("startup page sent", logx.String("recipient", user), logx.String("text", call.Text))
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if _, err := a.sd.Stopping(); err != nil {
		a.log.Debug("systemd notify failed", logx.Err(err))
	}

	// step runs fn with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if max > 0 {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("supervisor", 2*time.Second, a.sup.Stop)
	step("observability", 2*time.Second, func(c context.Context) error {
		a.obs.Stop(c)
		return nil
	})
	step("storage", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	st := a.loop.Stats()
	a.log.Info("stopped",
		logx.Int64("events", st.Events),
		logx.Int64("delivered", st.Delivered),
		logx.Int64("failed", st.Failed),
	)
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
