package metrics

import "github.com/prometheus/client_golang/prometheus"

// NotificationMetrics exposes counters for the reminder sweep and dispatch flows.
type NotificationMetrics struct {
	sweepEnqueued *prometheus.CounterVec
	sweepSkipped  *prometheus.CounterVec
	dispatchTotal *prometheus.CounterVec
}

func NewNotificationMetrics(reg prometheus.Registerer) *NotificationMetrics {
	m := &NotificationMetrics{
		sweepEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "notification",
			Name:      "sweep_enqueued_total",
			Help:      "Reminder jobs enqueued by the sweep",
		}, []string{"kind"}),
		sweepSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "notification",
			Name:      "sweep_skipped_total",
			Help:      "Appointments skipped during the sweep",
		}, []string{"reason"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "notification",
			Name:      "dispatch_total",
			Help:      "Dispatch outcomes per notification kind",
		}, []string{"kind", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sweepEnqueued, m.sweepSkipped, m.dispatchTotal)
	return m
}

func (m *NotificationMetrics) ObserveSweepEnqueue(kind string) {
	if m == nil {
		return
	}
	m.sweepEnqueued.WithLabelValues(kind).Inc()
}

func (m *NotificationMetrics) ObserveSweepSkip(reason string) {
	if m == nil {
		return
	}
	m.sweepSkipped.WithLabelValues(reason).Inc()
}

func (m *NotificationMetrics) ObserveDispatch(kind, status string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(kind, status).Inc()
}

// SchedulingMetrics exposes counters for booking outcomes.
type SchedulingMetrics struct {
	bookingsTotal  *prometheus.CounterVec
	slotConflicts  prometheus.Counter
	cancellations  *prometheus.CounterVec
	windowRejected prometheus.Counter
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"status"}),
		slotConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "slot_conflicts_total",
			Help:      "Bookings rejected because the slot was taken",
		}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "cancellations_total",
			Help:      "Cancellations by outcome",
		}, []string{"status"}),
		windowRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "cancellation_window_rejected_total",
			Help:      "Cancellations rejected by the minimum-notice window",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.slotConflicts, m.cancellations, m.windowRejected)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
}

func (m *SchedulingMetrics) ObserveSlotConflict() {
	if m == nil {
		return
	}
	m.slotConflicts.Inc()
}

func (m *SchedulingMetrics) ObserveCancellation(status string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(status).Inc()
}

func (m *SchedulingMetrics) ObserveWindowRejection() {
	if m == nil {
		return
	}
	m.windowRejected.Inc()
}
