package platform

import (
	"fmt"
	"strings"
	"time"

	"github.com/TimurManjosov/togglegen/internal/synth"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	ld "github.com/launchdarkly/go-server-sdk/v7"
	"github.com/launchdarkly/go-server-sdk/v7/ldcomponents"
	"github.com/rs/zerolog"
)

const defaultEventsCapacity = 5000

// LaunchDarklyOptions tunes the SDK client.
type LaunchDarklyOptions struct {
	EventsCapacity int            // pending-event buffer size
	InitTimeout    time.Duration  // how long to wait for the first flag payload
	Logger         zerolog.Logger // receives SDK warnings and errors
}

func (o LaunchDarklyOptions) config() ld.Config {
	capacity := o.EventsCapacity
	if capacity <= 0 {
		capacity = defaultEventsCapacity
	}
	return ld.Config{
		Events:  ldcomponents.SendEvents().Capacity(capacity),
		Logging: ldcomponents.Logging().Loggers(sdkLoggers(o.Logger)),
	}
}

// LaunchDarkly is a Client backed by the LaunchDarkly server-side SDK.
type LaunchDarkly struct {
	sdk *ld.LDClient
}

// NewLaunchDarkly connects the SDK. A client that does not initialize within the
// timeout is closed and ErrNotInitialized is returned.
func NewLaunchDarkly(sdkKey string, opts LaunchDarklyOptions) (*LaunchDarkly, error) {
	return connect(sdkKey, opts.config(), opts.InitTimeout)
}

func connect(sdkKey string, cfg ld.Config, timeout time.Duration) (*LaunchDarkly, error) {
	sdk, err := ld.MakeCustomClient(sdkKey, cfg, timeout)
	if err != nil {
		if sdk != nil {
			_ = sdk.Close()
		}
		return nil, fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}
	if !sdk.Initialized() {
		_ = sdk.Close()
		return nil, ErrNotInitialized
	}
	return &LaunchDarkly{sdk: sdk}, nil
}

func (l *LaunchDarkly) Initialized() bool { return l.sdk.Initialized() }

// Variation uses the JSON evaluation path, which accepts every flag type, so boolean,
// string and AI-config flags share one method.
func (l *LaunchDarkly) Variation(flagKey string, c synth.Context, def ldvalue.Value) (ldvalue.Value, error) {
	return l.sdk.JSONVariation(flagKey, c.LDContext(), def)
}

func (l *LaunchDarkly) TrackEvent(metric string, c synth.Context) error {
	return l.sdk.TrackEvent(metric, c.LDContext())
}

func (l *LaunchDarkly) TrackMetric(metric string, c synth.Context, value float64) error {
	return l.sdk.TrackMetric(metric, c.LDContext(), value, ldvalue.Null())
}

func (l *LaunchDarkly) Flush() { l.sdk.Flush() }

func (l *LaunchDarkly) Close() error { return l.sdk.Close() }

// sdkLogger writes one SDK log level as structured zerolog lines.
type sdkLogger struct {
	log    zerolog.Logger
	level  zerolog.Level
	prefix string // "WARN:" etc., added by ldlog
}

func (s sdkLogger) Println(values ...any) { s.emit(fmt.Sprintln(values...)) }

func (s sdkLogger) Printf(format string, values ...any) { s.emit(fmt.Sprintf(format, values...)) }

func (s sdkLogger) emit(msg string) {
	msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(msg), s.prefix))
	s.log.WithLevel(s.level).Msg(msg)
}

func sdkLoggers(log zerolog.Logger) ldlog.Loggers {
	log = log.With().Str("component", "launchdarkly").Logger()
	loggers := ldlog.NewDefaultLoggers()
	for level, zl := range map[ldlog.LogLevel]zerolog.Level{
		ldlog.Debug: zerolog.DebugLevel,
		ldlog.Info:  zerolog.InfoLevel,
		ldlog.Warn:  zerolog.WarnLevel,
		ldlog.Error: zerolog.ErrorLevel,
	} {
		loggers.SetBaseLoggerForLevel(level, sdkLogger{log: log, level: zl, prefix: strings.ToUpper(level.Name()) + ":"})
	}
	loggers.SetMinLevel(ldlog.Warn)
	return loggers
}
