package main

import (
	"errors"
	"log"

	"github.com/rl1809/invsnap/internal/adapter/marketplace"
	"github.com/rl1809/invsnap/internal/adapter/transport"
	"github.com/rl1809/invsnap/internal/config"
	"github.com/rl1809/invsnap/internal/core/auth"
	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/core/service"
	"github.com/rl1809/invsnap/internal/core/tracker"
	"github.com/rl1809/invsnap/internal/port"
)

var errNoMarketplace = errors.New("no marketplace credentials configured")

// buildSources creates a source for every marketplace that has credentials.
func buildSources(cfg *config.Config, logger *log.Logger) ([]port.Source, error) {
	httpTransport := transport.NewHTTPTransport(transport.Options{
		Timeout:      cfg.Transport.Timeout,
		MaxRetries:   cfg.Transport.MaxRetries,
		RetryBackoff: cfg.Transport.RetryBackoff,
		Logger:       logger,
	})
	errs := tracker.NewErrorStore(cfg.Snapshot.DiagnosticsDir, logger)
	maxFailures := cfg.Snapshot.TrackerMaxFailures

	var sources []port.Source

	bl := cfg.BrickLink
	if bl.Authorization != "" {
		session := auth.NewSession(httpTransport, auth.SessionConfig{
			Label:       "BrickLink BrickStore-Auth",
			AccountHost: bl.AccountHost,
			ClientID:    bl.ClientID,
			AccessToken: bl.BrickStoreToken,
			MaxFailures: maxFailures,
		}, errs, logger)
		sources = append(sources, marketplace.NewBrickLink(marketplace.BrickLinkConfig{
			APIHost:     bl.APIHost,
			WebHost:     bl.WebHost,
			ClientID:    bl.ClientID,
			MaxFailures: maxFailures,
		}, httpTransport, transport.HeaderSigner{Value: bl.Authorization}, session, errs, logger))
	}

	bo := cfg.BrickOwl
	if bo.Key != "" {
		sources = append(sources, marketplace.NewBrickOwl(marketplace.BrickOwlConfig{
			APIHost:          bo.APIHost,
			Key:              bo.Key,
			ReuseEmpty:       bo.ReuseEmpty,
			MinimumOrderDate: bo.MinimumOrderDate,
			MaxFailures:      maxFailures,
		}, httpTransport, errs, logger))
	}

	if len(sources) == 0 {
		return nil, errNoMarketplace
	}
	return sources, nil
}

func serviceOptions(cfg *config.Config, logger *log.Logger) service.Options {
	return service.Options{
		MaxRestarts: cfg.Snapshot.MaxRestarts,
		SettleDelay: cfg.Snapshot.SettleDelay,
		AllowEmpty: map[domain.Marketplace]bool{
			domain.MarketplaceBrickLink: cfg.BrickLink.AllowEmptyInventory,
			domain.MarketplaceBrickOwl:  cfg.BrickOwl.AllowEmptyInventory,
		},
		QueueSize: cfg.Server.QueueSize,
		Logger:    logger,
	}
}
