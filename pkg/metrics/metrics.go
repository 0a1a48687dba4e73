package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "roomly",
			Name:      "bookings_created_total",
			Help:      "Count of bookings admitted by the scheduling engine.",
		},
	)

	bookingsCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roomly",
			Name:      "bookings_cancelled_total",
			Help:      "Count of bookings cancelled, by cancellation path.",
		},
		[]string{"path"},
	)

	slotConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "roomly",
			Name:      "slot_conflicts_total",
			Help:      "Count of booking requests rejected by the overlap check.",
		},
	)

	admissionBusy = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "roomly",
			Name:      "admission_busy_total",
			Help:      "Count of booking requests that timed out waiting for the admission lock.",
		},
	)
)

// Register registers all engine metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingsCreated, bookingsCancelled, slotConflicts, admissionBusy)
	})
}

func IncBookingCreated() {
	bookingsCreated.Inc()
}

// IncBookingCancelled records a cancellation; path is "id", "token" or "admin".
func IncBookingCancelled(path string) {
	bookingsCancelled.WithLabelValues(path).Inc()
}

func IncSlotConflict() {
	slotConflicts.Inc()
}

func IncAdmissionBusy() {
	admissionBusy.Inc()
}
