package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus instruments for the order engine. A nil
// *Metrics is valid and records nothing, which keeps tests quiet.
type Metrics struct {
	ordersCreated   prometheus.Counter
	ordersAccepted  prometheus.Counter
	ordersDelivered prometheus.Counter
	ordersCancelled prometheus.Counter

	reservations        prometheus.Counter
	reservationFailures prometheus.Counter
	lowStockAdvisories  *prometheus.CounterVec

	eventsPublished *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	openRooms       prometheus.Gauge
}

// New registers the instruments on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the instruments on the given registerer.
func NewWithRegisterer(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "swiftdash_orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersAccepted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "swiftdash_orders_accepted_total",
			Help: "Total number of orders accepted by delivery partners",
		}),
		ordersDelivered: registerCounter(registerer, prometheus.CounterOpts{
			Name: "swiftdash_orders_delivered_total",
			Help: "Total number of orders confirmed delivered",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "swiftdash_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		reservations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "swiftdash_stock_reservations_total",
			Help: "Total number of successful stock reservations",
		}),
		reservationFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "swiftdash_stock_reservation_failures_total",
			Help: "Total number of reservations rejected for insufficient stock",
		}),
		lowStockAdvisories: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "swiftdash_low_stock_advisories_total",
			Help: "Low-stock advisories raised after a reservation",
		}, []string{"product"}),
		eventsPublished: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "swiftdash_events_published_total",
			Help: "Events published to rooms",
		}, []string{"event"}),
		eventsDropped: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "swiftdash_events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full",
		}, []string{"event"}),
		openRooms: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "swiftdash_open_rooms",
			Help: "Rooms currently holding at least one subscriber",
		}),
	}
}

func (m *Metrics) OrderCreated() {
	if m != nil {
		m.ordersCreated.Inc()
	}
}

func (m *Metrics) OrderAccepted() {
	if m != nil {
		m.ordersAccepted.Inc()
	}
}

func (m *Metrics) OrderDelivered() {
	if m != nil {
		m.ordersDelivered.Inc()
	}
}

func (m *Metrics) OrderCancelled() {
	if m != nil {
		m.ordersCancelled.Inc()
	}
}

func (m *Metrics) ReservationCommitted() {
	if m != nil {
		m.reservations.Inc()
	}
}

func (m *Metrics) ReservationRejected() {
	if m != nil {
		m.reservationFailures.Inc()
	}
}

func (m *Metrics) LowStockAdvisory(productID string) {
	if m != nil {
		m.lowStockAdvisories.WithLabelValues(productID).Inc()
	}
}

func (m *Metrics) EventPublished(name string) {
	if m != nil {
		m.eventsPublished.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) EventDropped(name string) {
	if m != nil {
		m.eventsDropped.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) SetOpenRooms(n int) {
	if m != nil {
		m.openRooms.Set(float64(n))
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	registerer.MustRegister(c)
	return c
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	registerer.MustRegister(c)
	return c
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	registerer.MustRegister(g)
	return g
}
