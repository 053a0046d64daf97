package polling

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/roach88/configstore/internal/model"
)

// Property keys read from the remote polling properties object.
const (
	PropertyPollingInterval = "csc.dynamic-updates.polling-interval"
	PropertyTimeOfDayUTC    = "csc.dynamic-updates.time-of-day-utc"
)

// DefaultPropertiesKey is the conventional name of the properties object.
const DefaultPropertiesKey = "polling.properties"

// ObjectReader is the part of an item store a PropertiesSource reads from.
type ObjectReader interface {
	SingleItemRef(ctx context.Context, key string) (model.ItemRef, bool, error)
	Item(ctx context.Context, ref model.ItemRef) (model.Item, error)
}

// PropertiesSource streams polling configurations read from a .properties
// object in the item store. The object is re-read every Refresh and a
// configuration is emitted only when it differs from the previous one.
//
// If the object is missing on the first read, the stream closes without
// emitting so a static configuration can take over.
type PropertiesSource struct {
	Store   ObjectReader
	Key     string
	Refresh time.Duration
	Clock   clock.Clock
	Logger  *zap.SugaredLogger
}

func (s *PropertiesSource) Configurations(ctx context.Context) <-chan model.PollingConfiguration {
	clk := s.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	refresh := s.Refresh
	if refresh <= 0 {
		refresh = 5 * time.Minute
	}

	out := make(chan model.PollingConfiguration)
	go func() {
		defer close(out)

		cfg, found, err := s.read(ctx)
		if err != nil || !found {
			logger.Warnw("failed to retrieve external polling properties at startup, using default polling configuration",
				"key", s.Key, "error", err)
			return
		}

		last := cfg
		select {
		case <-ctx.Done():
			return
		case out <- cfg:
		}

		ticker := clk.Ticker(refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			cfg, found, err := s.read(ctx)
			if err != nil {
				logger.Warnw("failed to refresh polling properties", "key", s.Key, "error", err)
				continue
			}
			if !found || cfg == last {
				continue
			}
			last = cfg
			select {
			case <-ctx.Done():
				return
			case out <- cfg:
			}
		}
	}()
	return out
}

func (s *PropertiesSource) read(ctx context.Context) (model.PollingConfiguration, bool, error) {
	ref, found, err := s.Store.SingleItemRef(ctx, s.Key)
	if err != nil || !found {
		return model.PollingConfiguration{}, false, err
	}
	item, err := s.Store.Item(ctx, ref)
	if err != nil {
		return model.PollingConfiguration{}, false, err
	}
	return ConfigurationFromProperties(ParseProperties(item.Content)), true, nil
}

// ConfigurationFromProperties builds a configuration from property values.
// Blank or unparsable values leave the field absent, which the scheduler
// rejects.
func ConfigurationFromProperties(props map[string]string) model.PollingConfiguration {
	var cfg model.PollingConfiguration
	if v := props[PropertyPollingInterval]; v != "" {
		if d, err := ParseDuration(v); err == nil {
			cfg.Interval = d
		}
	}
	if v := props[PropertyTimeOfDayUTC]; v != "" {
		if tod, err := model.ParseTimeOfDay(v); err == nil {
			cfg.TimeOfDay = tod
		}
	}
	return cfg
}

// ParseProperties reads Java-style properties: "key=value" or
// "key: value" per line, with '#' and '!' comments.
func ParseProperties(content string) map[string]string {
	props := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}
		i := strings.IndexAny(line, "=:")
		if i < 0 {
			props[line] = ""
			continue
		}
		props[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
	}
	return props
}
