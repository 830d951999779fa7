package main

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kiranshivaraju/scribe/internal/config"
	"github.com/kiranshivaraju/scribe/internal/store"
)

type commandContext struct {
	databaseFlag *string

	storeOnce sync.Once
	store     store.Store
	storeErr  error
}

func newCommandContext(databaseFlag *string) *commandContext {
	return &commandContext{databaseFlag: databaseFlag}
}

func (c *commandContext) ensureStore(ctx context.Context) (store.Store, error) {
	c.storeOnce.Do(func() {
		url := strings.TrimSpace(*c.databaseFlag)
		if url == "" {
			c.storeErr = errors.New("database URL is required: set DATABASE_URL or pass --database")
			return
		}
		c.store, c.storeErr = store.Open(ctx, config.DatabaseConfig{
			URL:          url,
			MaxOpenConns: 2,
			MaxIdleConns: 1,
		})
	})
	return c.store, c.storeErr
}

func (c *commandContext) close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}
