//go:build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/amaumene/catalogarr/internal/config"
)

func initializeApp(cfg *config.Config, logger zerolog.Logger) (*App, func(), error) {
	wire.Build(providerSet)
	return nil, nil, nil
}
