package main

import (
	"context"
	"strings"
	"sync"

	"tubecraft/internal/api"
	"tubecraft/internal/config"
	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if c.config != nil {
			return
		}
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withService opens the store for the duration of one command. The CLI talks
// to the store directly; a daemon picks up new drafts on its next poll tick.
func (c *commandContext) withService(fn func(ctx context.Context, svc *api.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := episode.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(context.Background(), api.NewService(cfg, store, nil, logging.NewNop()))
}
