package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pricehound/pricehound/internal/merchant"
	"github.com/pricehound/pricehound/internal/metrics"
	"github.com/pricehound/pricehound/internal/price"
	"github.com/pricehound/pricehound/internal/storage"
)

// DiscovererConfig tunes the per-merchant pipelines.
type DiscovererConfig struct {
	// MerchantTimeout bounds one merchant's whole pipeline. Zero means
	// 45 seconds.
	MerchantTimeout time.Duration
	// Topic is the publisher topic for price-drop events.
	Topic string
}

// Discoverer fans a product search out across the supported merchants and
// funnels every outcome through the ledger. It never writes the store
// itself; the ledger owns all persistence.
type Discoverer struct {
	merchants []merchant.Merchant
	gate      PolicyGate
	prober    Prober
	renderer  Renderer
	ledger    Ledger
	publisher Publisher
	archive   storage.Provider
	clock     Clock
	cfg       DiscovererConfig
	logger    *zap.Logger
}

// NewDiscoverer wires a Discoverer. Prober, publisher and archive are
// optional; gate, renderer and ledger are not.
func NewDiscoverer(
	merchants []merchant.Merchant,
	gate PolicyGate,
	prober Prober,
	renderer Renderer,
	ledger Ledger,
	publisher Publisher,
	archive storage.Provider,
	clock Clock,
	cfg DiscovererConfig,
	logger *zap.Logger,
) (*Discoverer, error) {
	if gate == nil || renderer == nil || ledger == nil {
		return nil, errors.New("gate, renderer and ledger are required")
	}
	if len(merchants) == 0 {
		return nil, errors.New("at least one merchant is required")
	}
	if cfg.MerchantTimeout <= 0 {
		cfg.MerchantTimeout = 45 * time.Second
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	return &Discoverer{
		merchants: merchants,
		gate:      gate,
		prober:    prober,
		renderer:  renderer,
		ledger:    ledger,
		publisher: publisher,
		archive:   archive,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Discover runs one pipeline per configured merchant and returns exactly
// one observation per merchant, keyed by merchant name. Per-merchant
// faults stay in their entry; only store failures surface as the returned
// error, after every sibling pipeline has finished.
func (d *Discoverer) Discover(ctx context.Context, productName string) (map[string]Observation, error) {
	results := make(map[string]Observation, len(d.merchants))

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		storeErrs []error
	)
	for _, m := range d.merchants {
		wg.Add(1)
		go func(m merchant.Merchant) {
			defer wg.Done()
			obs, storeErr := d.runPipeline(ctx, m, productName)
			mu.Lock()
			results[m.Name()] = obs
			if storeErr != nil {
				storeErrs = append(storeErrs, storeErr)
			}
			mu.Unlock()
		}(m)
	}
	wg.Wait()

	if len(storeErrs) > 0 {
		return results, storeErrs[0]
	}
	return results, nil
}

// runPipeline executes gate → preflight → render → extract → normalize →
// ledger for one merchant. The second return value is non-nil only for
// store faults; everything else is folded into the observation.
func (d *Discoverer) runPipeline(ctx context.Context, m merchant.Merchant, productName string) (Observation, error) {
	log := d.logger.With(zap.String("merchant", m.Name()), zap.String("product", productName))
	start := d.clock.Now()

	mctx, cancel := context.WithTimeout(ctx, d.cfg.MerchantTimeout)
	defer cancel()

	searchURL := m.SearchURL(productName)

	if !d.gate.Allowed(mctx, searchURL) {
		log.Info("merchant denied by robots policy")
		metrics.ObserveDiscovery(m.Name(), metrics.OutcomeDenied, d.clock.Now().Sub(start))
		return Observation{URL: m.BaseURL(), Error: PolicyDeniedMessage}, nil
	}

	d.preflight(mctx, log, searchURL)

	cents, faultMsg := d.crawlPrice(mctx, log, m, searchURL, productName)

	rec := PriceRecord{
		ProductName:  productName,
		PriceInCents: cents,
		SourceURL:    searchURL,
		Merchant:     m.Name(),
	}
	outcome, err := d.ledger.Record(mctx, rec)
	if err != nil {
		log.Error("ledger record failed", zap.Error(err))
		metrics.ObserveDiscovery(m.Name(), metrics.OutcomeStoreFault, d.clock.Now().Sub(start))
		var storeErr *StoreError
		if errors.As(err, &storeErr) {
			return Observation{URL: searchURL, Error: "store failure"}, err
		}
		return Observation{URL: searchURL, Error: "store failure"}, &StoreError{Op: "record", Err: err}
	}

	d.publishPriceDrop(mctx, log, m, productName, searchURL, rec, outcome)

	obs := Observation{URL: searchURL, Price: cents, Error: faultMsg}
	metrics.ObserveDiscovery(m.Name(), outcomeLabel(cents, faultMsg), d.clock.Now().Sub(start))
	return obs, nil
}

// crawlPrice renders and extracts, mapping the taxonomy: a missing listing
// is a nil price with no fault, while render or parse trouble is a nil
// price with a fault message. Both still reach the ledger.
func (d *Discoverer) crawlPrice(
	ctx context.Context,
	log *zap.Logger,
	m merchant.Merchant,
	searchURL, productName string,
) (*int64, string) {
	page, err := d.renderer.Render(ctx, searchURL, m.WaitSelector())
	if err != nil {
		log.Warn("render failed", zap.Error(err))
		return nil, fmt.Sprintf("render failed: %v", err)
	}
	d.archiveSnapshot(ctx, log, m, page)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		log.Warn("parse rendered page failed", zap.Error(err))
		return nil, fmt.Sprintf("parse failed: %v", err)
	}

	raw, err := m.ExtractPrice(doc, productName)
	if err != nil {
		if errors.Is(err, merchant.ErrNoListing) {
			log.Info("no matching listing with a price")
			return nil, ""
		}
		log.Warn("extract failed", zap.Error(err))
		return nil, fmt.Sprintf("extract failed: %v", err)
	}

	cents, err := price.Normalize(raw.Whole, raw.Fraction)
	if err != nil {
		// A present but unparsable price element is a fault, not NotFound.
		log.Warn("normalize failed", zap.String("whole", raw.Whole),
			zap.String("fraction", raw.Fraction), zap.Error(err))
		return nil, fmt.Sprintf("normalize failed: %v", err)
	}

	log.Info("price observed", zap.Int64("price_in_cents", cents))
	metrics.ObservePrice(m.Name(), cents)
	return &cents, ""
}

func (d *Discoverer) preflight(ctx context.Context, log *zap.Logger, searchURL string) {
	if d.prober == nil {
		return
	}
	status, err := d.prober.Probe(ctx, searchURL)
	switch {
	case err != nil:
		log.Warn("preflight probe failed", zap.Int("status", status), zap.Error(err))
	case status != http.StatusOK:
		log.Warn("preflight returned non-OK status", zap.Int("status", status))
	}
}

func (d *Discoverer) archiveSnapshot(ctx context.Context, log *zap.Logger, m merchant.Merchant, page Page) {
	if d.archive == nil || len(page.Body) == 0 {
		return
	}
	key := fmt.Sprintf("snapshots/%s/%d.html",
		strings.ToLower(m.Name()), d.clock.Now().UnixNano())
	if err := d.archive.Save(ctx, key, page.Body); err != nil {
		// Snapshots are an audit aid; losing one never fails the pipeline.
		log.Warn("archive snapshot failed", zap.String("key", key), zap.Error(err))
	}
}

func (d *Discoverer) publishPriceDrop(
	ctx context.Context,
	log *zap.Logger,
	m merchant.Merchant,
	productName, searchURL string,
	rec PriceRecord,
	outcome RecordOutcome,
) {
	if d.publisher == nil || !outcome.NewLowest || rec.PriceInCents == nil {
		return
	}
	event := PriceDropEvent{
		DealID:       outcome.DealID.String(),
		ProductName:  productName,
		Merchant:     m.Name(),
		PriceInCents: *rec.PriceInCents,
		SourceURL:    searchURL,
		ObservedAt:   d.clock.Now().Unix(),
	}
	if _, err := d.publisher.Publish(ctx, d.cfg.Topic, event); err != nil {
		log.Warn("publish price drop failed", zap.Error(err))
	}
}

func outcomeLabel(cents *int64, faultMsg string) string {
	switch {
	case faultMsg != "":
		return metrics.OutcomeFault
	case cents == nil:
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeFound
	}
}
