package crawler

import (
	"fmt"

	"sjsage522/pricemonitor/config"
	"sjsage522/pricemonitor/helpers"
	"sjsage522/pricemonitor/internal/pacer"
)

// Pipeline is the assembled extraction core: one pacer, one session, one resolver
type Pipeline struct {
	Pacer    *pacer.Pacer
	Client   *Client
	Resolver *PriceResolver
}

// CreatePipeline builds the extraction core from the configuration.
// rnd and sleep may be nil to use the clock-seeded source and time.Sleep.
func CreatePipeline(cfg *config.Config, rnd helpers.RandomSource, sleep pacer.Sleeper) (*Pipeline, error) {
	if rnd == nil {
		rnd = helpers.NewRandomSource()
	}

	p := pacer.New(cfg.RandomDelayMin, cfg.RandomDelayMax, rnd, sleep)
	headers := helpers.NewHeaderRandomizer(rnd, cfg.AcceptLanguage)

	opts := ClientOptions{
		WarmupURL:      cfg.WarmupURL,
		SessionCookies: cfg.SessionCookies,
	}
	if cfg.DebugMode {
		opts.DebugResponseFile = cfg.DebugResponseFile
	}

	client, err := NewClient(headers, p, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch client: %w", err)
	}

	return &Pipeline{
		Pacer:    p,
		Client:   client,
		Resolver: NewPriceResolver(client, NewExtractor(DefaultProfile()), p),
	}, nil
}
