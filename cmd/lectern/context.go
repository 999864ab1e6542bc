package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mmcdole/lectern/internal/config"
	"github.com/mmcdole/lectern/internal/datacache"
	"github.com/mmcdole/lectern/internal/domain"
	"github.com/mmcdole/lectern/internal/log"
	"github.com/mmcdole/lectern/internal/source"
	"github.com/mmcdole/lectern/internal/store"
)

// commandContext lazily builds what commands share
type commandContext struct {
	configFlag *string

	cfg    *config.Config
	logger *slog.Logger

	store  *store.ContentStore
	client *source.Client
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}

	cfg, err := config.LoadConfig(*c.configFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.cfg = cfg

	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)
	c.logger = logger

	return cfg, nil
}

// openCache opens the persistent store and warms a data cache from it
func (c *commandContext) openCache() (*datacache.Cache, error) {
	st, err := store.NewContentStore(c.cfg.CachePath(), c.cfg.Server.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	c.store = st

	cache, err := datacache.New(st, c.logger)
	if err != nil {
		return nil, err
	}
	return cache, nil
}

func (c *commandContext) newClient() (*source.Client, error) {
	if !c.cfg.IsConfigured() {
		return nil, fmt.Errorf("server url and token are required (set server.token in config or LECTERN_SERVER_TOKEN)")
	}
	c.client = source.NewClient(c.cfg.Server.URL, c.cfg.Server.Token, c.logger)
	return c.client, nil
}

func (c *commandContext) close() {
	if c.client != nil {
		c.client.Close()
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Warn("failed to close cache", "error", err)
		}
	}
}

func parseContentID(arg string) (domain.ContentID, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid content id %q", arg)
	}
	return domain.ContentID(id), nil
}
