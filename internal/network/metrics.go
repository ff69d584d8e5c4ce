package network

import (
	"github.com/annel0/spacebobble/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики игрового сервера
//
//	game_connections_active: gauge
//	game_connections_total: counter
//	game_frames_total{direction,kind}: counter
//	game_tick_duration_seconds: histogram обработки такта координатором
//	game_connection_errors_total{stage}: counter
type Metrics struct {
	active   prometheus.Gauge
	total    prometheus.Counter
	frames   *prometheus.CounterVec
	tickTime prometheus.Histogram
	errors   *prometheus.CounterVec
}

// NewMetrics создаёт метрики и регистрирует их в reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "game",
			Name:      "connections_active",
			Help:      "Текущее число игровых соединений.",
		}),
		total: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "game",
			Name:      "connections_total",
			Help:      "Общее число принятых соединений.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "game",
			Name:      "frames_total",
			Help:      "Кадры протокола по направлению и виду.",
		}, []string{"direction", "kind"}),
		tickTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "game",
			Name:      "tick_duration_seconds",
			Help:      "Время обработки сообщения клиента координатором.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "game",
			Name:      "connection_errors_total",
			Help:      "Соединения, завершившиеся ошибкой, по стадии.",
		}, []string{"stage"}),
	}

	reg.MustRegister(m.active, m.total, m.frames, m.tickTime, m.errors)
	return m
}

func (m *Metrics) connOpened() {
	if m == nil {
		return
	}
	m.total.Inc()
	m.active.Inc()
}

func (m *Metrics) connClosed() {
	if m == nil {
		return
	}
	m.active.Dec()
}

func (m *Metrics) frame(direction string, kind protocol.Kind) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(direction, kind.String()).Inc()
}

func (m *Metrics) observeTick(seconds float64) {
	if m == nil {
		return
	}
	m.tickTime.Observe(seconds)
}

func (m *Metrics) failed(stage string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(stage).Inc()
}
