package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/seantiz/qexec/internal/backend"
	"github.com/seantiz/qexec/internal/backend/dummy"
	"github.com/seantiz/qexec/internal/backend/local"
	"github.com/seantiz/qexec/internal/pool"
)

// deprecatedNames maps retired backend names to their replacements.
var deprecatedNames = map[string]string{
	"dummy_simulator": dummy.Name,
	"null_simulator":  local.DefaultName,
}

// newRegistry registers the built-in backends on p.
func newRegistry(p *pool.Pool, timeAlive time.Duration, logger *slog.Logger) (*backend.Registry, error) {
	reg := backend.NewRegistry(logger)
	reg.Register(dummy.New(p, logger, dummy.WithTimeAlive(timeAlive)))
	reg.Register(local.New(p, local.NullExecutor{}, logger))

	for alias, target := range deprecatedNames {
		if err := reg.RegisterAlias(alias, target); err != nil {
			return nil, fmt.Errorf("register alias %s: %w", alias, err)
		}
	}
	return reg, nil
}
