package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/civic-map-service/internal/domain"
	"github.com/couchcryptid/civic-map-service/internal/observability"
	"github.com/couchcryptid/civic-map-service/internal/source"
)

// Control-surface bounds for clustering parameters.
const (
	MinEpsilonKm     = 0.1
	MaxEpsilonKm     = 1.0
	MinClusterPoints = 1
	MaxClusterPoints = 10
)

// maxPendingPublishes bounds concurrent snapshot sends.
const maxPendingPublishes = 16

// Publisher receives every successfully rendered view.
type Publisher interface {
	Publish(ctx context.Context, view domain.View) error
}

// FilterOptions lists the choices the control surface may offer.
type FilterOptions struct {
	States     []domain.State `json:"states"`
	Categories []string       `json:"categories"`
	Districts  []string       `json:"districts"`
	MinDate    string         `json:"min_date,omitempty"`
	MaxDate    string         `json:"max_date,omitempty"`
	MapModes   []string       `json:"map_modes"`
	MapStyles  []string       `json:"map_styles"`
}

// Pipeline renders map views from the record source. Every call recomputes
// the whole chain from the (possibly memoized) source table.
type Pipeline struct {
	loader       source.Loader
	locale       *domain.Locale
	filter       *domain.FilterEngine
	clusterer    *domain.SpatialClusterer
	layers       *domain.LayerBuilder
	logger       *slog.Logger
	metrics      *observability.Metrics
	ready        atomic.Bool
	maxRows      int
	defaultStyle domain.MapStyle
	publisher    Publisher
	publishSlots chan struct{}
	publishes    sync.WaitGroup
	clock        clockwork.Clock
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithMaxRows caps how many source rows are loaded.
func WithMaxRows(n int) Option { return func(p *Pipeline) { p.maxRows = n } }

// WithPublisher sends rendered views to pub.
func WithPublisher(pub Publisher) Option { return func(p *Pipeline) { p.publisher = pub } }

// WithClock replaces the real clock, for tests.
func WithClock(c clockwork.Clock) Option { return func(p *Pipeline) { p.clock = c } }

// WithDefaultStyle sets the basemap used when a request names none.
func WithDefaultStyle(s domain.MapStyle) Option { return func(p *Pipeline) { p.defaultStyle = s } }

// New creates a Pipeline. Calendar dates in filters are read in loc.
func New(loader source.Loader, locale *domain.Locale, loc *time.Location, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		loader:       loader,
		locale:       locale,
		filter:       domain.NewFilterEngine(locale, loc),
		clusterer:    domain.NewSpatialClusterer(locale),
		layers:       domain.NewLayerBuilder(domain.NewColorAssigner(locale)),
		logger:       logger,
		metrics:      metrics,
		maxRows:      5000,
		defaultStyle: domain.StyleDark,
		publishSlots: make(chan struct{}, maxPendingPublishes),
		clock:        clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once the source has been loaded successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("ticket source has not been loaded yet")
	}
	return nil
}

// Warm loads the source so the first request does not pay for it. Failed
// loads are retried with exponential backoff until ctx is cancelled.
func (p *Pipeline) Warm(ctx context.Context) error {
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		table, err := p.load(ctx)
		if err == nil {
			p.logger.Info("ticket source ready", "tickets", len(table.Tickets), "rejected", len(table.Rejected))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Error("load ticket source failed", "error", err, "retry_in", backoff)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

// Render runs filter, color/cluster, and projection for params. Parameter
// violations are reported before any computation and wrap
// domain.ErrInvalidParams or domain.ErrInvalidClusterParams.
func (p *Pipeline) Render(ctx context.Context, params domain.ViewParams) (domain.View, error) {
	start := p.clock.Now()

	if params.Style == "" {
		params.Style = p.defaultStyle
	}
	if err := p.validate(params); err != nil {
		p.metrics.ViewErrors.WithLabelValues("invalid_params").Inc()
		return domain.View{}, err
	}

	table, err := p.load(ctx)
	if err != nil {
		return domain.View{}, err
	}
	tickets, err := p.selectTickets(&table, params.Filter)
	if err != nil {
		return domain.View{}, err
	}

	view := domain.View{
		Params:   params,
		StyleURL: params.Style.URL(),
		Summary: domain.ViewSummary{
			Loaded:   len(table.Tickets),
			Rejected: len(table.Rejected),
			Degraded: table.Degraded,
			Filtered: len(tickets),
		},
	}

	var clustering *domain.Clustering
	if params.Mode == domain.LayerCluster {
		c, err := p.cluster(tickets, params.Cluster)
		if err != nil {
			p.metrics.ViewErrors.WithLabelValues("invalid_params").Inc()
			return domain.View{}, err
		}
		clustering = &c
		view.Summary.Clusters = c.Clusters
		view.Summary.Noise = c.Noise
	}

	view.Layer, err = p.layers.Build(params.Mode, tickets, clustering)
	if err != nil {
		p.metrics.ViewErrors.WithLabelValues("internal").Inc()
		return domain.View{}, fmt.Errorf("build layer: %w", err)
	}
	view.Counts = domain.Aggregate(tickets)
	if center, ok := domain.Center(tickets); ok {
		view.Center = &center
		view.HasData = true
	}
	view.GeneratedAt = p.clock.Now()

	p.metrics.ViewsRendered.WithLabelValues(string(params.Mode)).Inc()
	p.metrics.FilteredTickets.Observe(float64(len(tickets)))
	p.metrics.RenderDuration.Observe(p.clock.Since(start).Seconds())
	p.logger.Debug("view rendered",
		"mode", params.Mode,
		"filtered", len(tickets),
		"loaded", len(table.Tickets),
		"clusters", view.Summary.Clusters,
	)

	p.publish(ctx, view)
	return view, nil
}

// Tickets returns the filtered ticket rows for the raw data view.
func (p *Pipeline) Tickets(ctx context.Context, params domain.FilterParams) ([]domain.Ticket, error) {
	if err := p.filter.Validate(params); err != nil {
		p.metrics.ViewErrors.WithLabelValues("invalid_params").Inc()
		return nil, err
	}
	table, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	return p.selectTickets(&table, params)
}

// Options reports the selectable filter values for the loaded data.
func (p *Pipeline) Options(ctx context.Context) (FilterOptions, error) {
	table, err := p.load(ctx)
	if err != nil {
		return FilterOptions{}, err
	}
	opts := FilterOptions{
		States:     domain.States(),
		Categories: p.locale.Categories,
		Districts:  table.Districts(),
		MapModes:   []string{string(domain.LayerPoints), string(domain.LayerHeatmap), string(domain.LayerCluster)},
		MapStyles: []string{
			string(domain.StyleDark), string(domain.StyleLight),
			string(domain.StyleRoad), string(domain.StyleSatellite),
		},
	}
	if lo, hi, ok := table.DateBounds(); ok {
		opts.MinDate = lo.Format(domain.DateLayout)
		opts.MaxDate = hi.Format(domain.DateLayout)
	}
	return opts, nil
}

func (p *Pipeline) validate(params domain.ViewParams) error {
	if err := p.filter.Validate(params.Filter); err != nil {
		return err
	}
	switch params.Mode {
	case domain.LayerPoints, domain.LayerHeatmap:
	case domain.LayerCluster:
		c := params.Cluster
		if c.EpsilonKm < MinEpsilonKm || c.EpsilonKm > MaxEpsilonKm {
			return fmt.Errorf("%w: epsilon_km must be within [%g, %g], got %v",
				domain.ErrInvalidClusterParams, MinEpsilonKm, MaxEpsilonKm, c.EpsilonKm)
		}
		if c.MinPoints < MinClusterPoints || c.MinPoints > MaxClusterPoints {
			return fmt.Errorf("%w: min_points must be within [%d, %d], got %d",
				domain.ErrInvalidClusterParams, MinClusterPoints, MaxClusterPoints, c.MinPoints)
		}
	default:
		return fmt.Errorf("%w: unknown map mode %q", domain.ErrInvalidParams, params.Mode)
	}
	if params.Style.URL() == "" {
		return fmt.Errorf("%w: unknown map style %q", domain.ErrInvalidParams, params.Style)
	}
	return nil
}

func (p *Pipeline) load(ctx context.Context) (domain.Table, error) {
	table, err := p.loader.Load(ctx, p.maxRows)
	if err != nil {
		p.metrics.ViewErrors.WithLabelValues("source").Inc()
		return domain.Table{}, fmt.Errorf("load tickets: %w", err)
	}
	p.ready.Store(true)
	return table, nil
}

// selectTickets checks the district against the loaded data and applies the
// filter chain.
func (p *Pipeline) selectTickets(table *domain.Table, params domain.FilterParams) ([]domain.Ticket, error) {
	if params.District != "" && params.District != domain.All && !table.HasDistrict(params.District) {
		p.metrics.ViewErrors.WithLabelValues("invalid_params").Inc()
		return nil, fmt.Errorf("%w: unknown district %q", domain.ErrInvalidParams, params.District)
	}
	return p.filter.Apply(table.Tickets, params), nil
}

func (p *Pipeline) cluster(tickets []domain.Ticket, params domain.ClusterParams) (domain.Clustering, error) {
	start := p.clock.Now()
	c, err := p.clusterer.Cluster(tickets, params)
	if err != nil {
		return domain.Clustering{}, err
	}
	p.metrics.ClusterDuration.Observe(p.clock.Since(start).Seconds())
	p.metrics.ClustersFound.Observe(float64(c.Clusters))
	return c, nil
}

// publish sends view off the request path. The send is detached from the
// request context; when maxPendingPublishes sends are already in flight the
// snapshot is dropped rather than queued.
func (p *Pipeline) publish(ctx context.Context, view domain.View) {
	if p.publisher == nil {
		return
	}
	select {
	case p.publishSlots <- struct{}{}:
	default:
		p.metrics.SnapshotsPublished.WithLabelValues("dropped").Inc()
		p.logger.Warn("view snapshot dropped, publisher busy", "mode", view.Params.Mode)
		return
	}

	ctx = context.WithoutCancel(ctx)
	p.publishes.Add(1)
	go func() {
		defer func() {
			<-p.publishSlots
			p.publishes.Done()
		}()
		if err := p.publisher.Publish(ctx, view); err != nil {
			p.metrics.SnapshotsPublished.WithLabelValues("error").Inc()
			p.logger.Warn("publish view snapshot failed", "mode", view.Params.Mode, "error", err)
			return
		}
		p.metrics.SnapshotsPublished.WithLabelValues("success").Inc()
	}()
}

// Drain waits for in-flight snapshot publishes to finish.
func (p *Pipeline) Drain() {
	p.publishes.Wait()
}
