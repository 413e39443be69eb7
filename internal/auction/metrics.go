package auction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bid outcome label values.
const (
	outcomeAccepted     = "accepted"
	outcomeTooLow       = "below_starting_bid"
	outcomeItemNotFound = "item_not_found"
	outcomeInvalid      = "invalid_argument"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	bids              *prometheus.CounterVec
	lowestBidChanges  prometheus.Counter
	auctionsStarted   prometheus.Counter
	resultResolutions prometheus.Counter
	items             prometheus.Gauge
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		bids: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auction_bids_total",
				Help: "Total number of bids by outcome",
			},
			[]string{"outcome"},
		),
		lowestBidChanges: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "auction_lowest_bid_changes_total",
				Help: "Number of bids that became the new lowest bid of an item",
			},
		),
		auctionsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "auction_starts_total",
				Help: "Number of auctions started",
			},
		),
		resultResolutions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "auction_resolutions_total",
				Help: "Number of result resolution passes",
			},
		),
		items: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "auction_items",
				Help: "Number of items in the current auction",
			},
		),
	}
}

func (m *Metrics) observeBid(outcome string) {
	if m == nil {
		return
	}
	m.bids.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeLowestBidChange() {
	if m == nil {
		return
	}
	m.lowestBidChanges.Inc()
}

func (m *Metrics) observeStart(items int) {
	if m == nil {
		return
	}
	m.auctionsStarted.Inc()
	m.items.Set(float64(items))
}

func (m *Metrics) observeResolution() {
	if m == nil {
		return
	}
	m.resultResolutions.Inc()
}
