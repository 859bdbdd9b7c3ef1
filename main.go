package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sjsage522/dealbridge/config"
	"sjsage522/dealbridge/internal/binder"
	"sjsage522/dealbridge/internal/bridge"
	"sjsage522/dealbridge/internal/cpq"
	"sjsage522/dealbridge/internal/deal"
	"sjsage522/dealbridge/internal/page"
	"sjsage522/dealbridge/logger"
	"sjsage522/dealbridge/services/cache"
	"sjsage522/dealbridge/services/hubspot"
	"sjsage522/dealbridge/services/publisher"

	"github.com/joho/godotenv"
)

const usage = `usage:
  dealbridge [attach]          wire the CPQ button into a live deal page
  dealbridge extract <source>  print the deal read from a saved file or URL`

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Set up context with cancellation on signals
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	services := initializeServices(ctx, cfg)
	defer services.Cleanup()

	args := os.Args[1:]
	mode := "attach"
	if len(args) > 0 {
		mode = args[0]
	}

	var err error
	switch mode {
	case "attach":
		err = runAttach(ctx, cfg, services)
	case "extract":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		err = runExtract(ctx, cfg, services, args[1], os.Stdout)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Str("mode", mode).Msg("Deal bridge failed")
	}
	log.Info().Msg("Shutting down gracefully...")
}

// Services holds the optional services
type Services struct {
	HubSpot     *hubspot.Client
	LaunchGuard *cache.LaunchGuard
	Publisher   publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		if err := s.Publisher.TrimStreams(); err != nil {
			logger.LogError("publisher", err, "failed to trim launch stream")
		}
		s.Publisher.Close()
	}
}

// initializeServices connects the services enabled by configuration.
// An unreachable optional service is logged and left disabled.
func initializeServices(ctx context.Context, cfg *config.Config) *Services {
	services := &Services{}

	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			logger.ForCache().Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, duplicate launches allowed")
		} else {
			services.LaunchGuard = cache.NewLaunchGuard(mc, cfg.LaunchBlock)
			logger.Info("Connected to Memcache at %s (block: %s)", cfg.MemcacheAddr, cfg.LaunchBlock)
		}
	}

	if cfg.RedisAddr != "" {
		rp := publisher.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
		if err := rp.Ping(); err != nil {
			logger.ForPublisher().Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, launch events disabled")
			rp.Close()
		} else {
			services.Publisher = rp
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)", cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	if cfg.HubSpotAPIKey != "" {
		services.HubSpot = hubspot.NewClient(cfg.HubSpotBaseURL, cfg.HubSpotAPIKey)
		logger.Info("HubSpot enrichment enabled via %s", cfg.HubSpotBaseURL)
	}

	return services
}

func bridgeOptions(cfg *config.Config, services *Services) bridge.Options {
	opts := bridge.Options{
		CPQBaseURL: cfg.CPQBaseURL,
		Binder: binder.Config{
			RecheckDelay: cfg.RecheckDelay,
			Button:       page.Button{Label: cfg.ButtonLabel},
		},
		LaunchGuard: services.LaunchGuard,
		Publisher:   services.Publisher,
	}
	// a nil *hubspot.Client must not become a non-nil interface
	if services.HubSpot != nil {
		opts.HubSpot = services.HubSpot
	}
	return opts
}

// runAttach drives a browser tab and keeps the bridge alive until ctx ends
func runAttach(ctx context.Context, cfg *config.Config, services *Services) error {
	tab, closeTab := page.LaunchChrome(ctx, page.ChromeOptions{
		RemoteAddr: cfg.ChromeAddr,
		Headless:   cfg.ChromeHeadless,
	})
	defer closeTab()

	p := page.NewChromePage(tab)
	if cfg.DealPageURL != "" {
		if err := p.Navigate(ctx, cfg.DealPageURL); err != nil {
			return err
		}
	}

	// stop watching when either the signal context or the tab ends
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		select {
		case <-tab.Done():
			logger.Warn("Browser tab closed")
			stopWatch()
		case <-watchCtx.Done():
		}
	}()

	b := bridge.New(p, bridgeOptions(cfg, services))
	logger.Info("Waiting for CPQ button clicks; press Ctrl+C to exit")
	return b.Watch(watchCtx, p.Navigations())
}

// extractResult is what the extract command prints
type extractResult struct {
	Deal    deal.Record `json:"deal"`
	CPQURL  string      `json:"cpqUrl"`
	Missing []string    `json:"missing,omitempty"`
}

// runExtract reads a deal from a saved page or URL and prints it with its CPQ URL
func runExtract(ctx context.Context, cfg *config.Config, services *Services, source string, out io.Writer) error {
	var (
		p   *page.DocumentPage
		err error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		p, err = page.Fetch(ctx, source, page.WithCookie(cfg.DealPageCookie))
	} else {
		p, err = page.LoadFile(source, cfg.DealPageURL)
	}
	if err != nil {
		return err
	}

	b := bridge.New(p, bridgeOptions(cfg, services))
	rec, err := b.CurrentDealData(ctx)
	if err != nil {
		return err
	}

	result := extractResult{Deal: rec}
	for _, f := range rec.Missing(deal.RequiredFields...) {
		result.Missing = append(result.Missing, string(f))
	}
	if result.CPQURL, err = cpq.BuildURL(cfg.CPQBaseURL, rec); err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
