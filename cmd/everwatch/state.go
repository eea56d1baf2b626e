package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guregu/null/v5"

	"github.com/hazz-dev/everwatch/internal/config"
	"github.com/hazz-dev/everwatch/internal/endpoint"
	"github.com/hazz-dev/everwatch/internal/storage"
)

// state is the persisted registry shared by every command.
type state struct {
	gw     storage.Gateway
	reg    *endpoint.Registry
	logger *slog.Logger
}

func storageConfig(c config.StorageConfig) storage.Config {
	return storage.Config{
		Driver:      c.Driver,
		Path:        c.Path,
		RedisAddr:   c.RedisAddr,
		RedisKey:    c.RedisKey,
		PostgresURL: c.PostgresURL,
	}
}

// openState connects the configured gateway and restores its snapshot.
func openState(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*state, error) {
	gw, err := storage.Open(ctx, storageConfig(cfg.Storage))
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	st, err := restore(ctx, gw, cfg.Retention.MaxRecords, logger)
	if err != nil {
		gw.Close()
		return nil, err
	}
	return st, nil
}

// restore loads gw into a new registry. An unreachable store is fatal; a
// corrupt snapshot is dropped and the registry starts empty.
func restore(ctx context.Context, gw storage.Gateway, maxRecords int, logger *slog.Logger) (*state, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg := endpoint.NewRegistry(maxRecords)

	res := gw.Load(ctx)
	switch res.State {
	case storage.LoadUnavailable:
		return nil, fmt.Errorf("loading snapshot: %w", res.Err)
	case storage.LoadCorrupt:
		logger.Warn("discarding corrupt snapshot", "error", res.Err)
	case storage.LoadEmpty:
		logger.Debug("no snapshot found")
	case storage.LoadOK:
		if err := reg.Restore(res.Endpoints); err != nil {
			return nil, fmt.Errorf("restoring snapshot: %w", err)
		}
		logger.Debug("snapshot restored", "endpoints", len(res.Endpoints))
	}
	return &state{gw: gw, reg: reg, logger: logger}, nil
}

// seed adds configured endpoints the registry does not know yet, matching
// by id when one is given and by url otherwise.
func (s *state) seed(eps []config.EndpointConfig) error {
	existing := s.reg.List()
	byURL := make(map[string]bool, len(existing))
	for _, ep := range existing {
		byURL[ep.URL] = true
	}

	for _, ec := range eps {
		if ec.ID != "" {
			if _, err := s.reg.Get(ec.ID); err == nil {
				continue
			}
		} else if byURL[endpoint.NormalizeURL(ec.URL)] {
			continue
		}

		name := ec.Name
		if name == "" {
			name = ec.URL
		}
		ep := endpoint.New(name, ec.URL, ec.Settings())
		if ec.ID != "" {
			ep.ID = ec.ID
		}
		added, err := s.reg.Add(ep)
		if err != nil {
			return fmt.Errorf("seeding endpoint %q: %w", ec.URL, err)
		}
		byURL[added.URL] = true
		s.logger.Info("endpoint seeded", "id", added.ID, "url", added.URL)
	}
	return nil
}

func (s *state) add(ctx context.Context, rawURL string, opts addOptions) (endpoint.Endpoint, error) {
	settings := endpoint.Settings{
		TimeSensitive:       opts.timeSensitive,
		SkipTLSVerification: opts.skipTLS,
	}
	if opts.expectedStatus != 0 {
		settings.ExpectedStatus = null.IntFrom(int64(opts.expectedStatus))
	}
	name := opts.name
	if name == "" {
		name = endpoint.NormalizeURL(rawURL)
	}

	ep, err := s.reg.Add(endpoint.New(name, rawURL, settings))
	if err != nil {
		return endpoint.Endpoint{}, err
	}
	return ep, s.save(ctx)
}

func (s *state) remove(ctx context.Context, id string) error {
	if err := s.reg.Remove(id); err != nil {
		return err
	}
	return s.save(ctx)
}

func (s *state) save(ctx context.Context) error {
	if err := s.gw.Save(ctx, s.reg.List()); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

func (s *state) close() {
	if err := s.gw.Close(); err != nil {
		s.logger.Warn("closing storage", "error", err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// openLocal opens cfg's store and seeds its configured endpoints.
func openLocal(ctx context.Context, cfg *config.Config) (*state, error) {
	st, err := openState(ctx, cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	if err := st.seed(cfg.Endpoints); err != nil {
		st.close()
		return nil, err
	}
	return st, nil
}

// loadState reads the config and opens its store for one-off commands.
func loadState(ctx context.Context) (*config.Config, *state, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := openLocal(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}
