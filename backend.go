/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"

	"github.com/Seednode/kamikaze/storage"
)

func openBackend(ctx context.Context, cfg *Config) (storage.Backend, error) {
	switch cfg.storage {
	case storageSQLite:
		s, err := storage.OpenSQLite(cfg.sqlitePath)
		if err != nil {
			return nil, err
		}
		logf(cfg, "STORE: Using sqlite database %s", cfg.sqlitePath)
		return s, nil
	case storageRedis:
		r, err := storage.OpenRedis(ctx, cfg.redisAddress, cfg.redisPassword, cfg.redisDB)
		if err != nil {
			return nil, err
		}
		logf(cfg, "STORE: Using redis at %s (db %d)", cfg.redisAddress, cfg.redisDB)
		return r, nil
	case storageMemory, "":
		logf(cfg, "STORE: Using in-memory storage; nothing survives a restart")
		return storage.NewMemory(), nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", cfg.storage)
}
