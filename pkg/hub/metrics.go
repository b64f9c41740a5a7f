package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "syncpad_rooms",
		Help: "Number of active rooms.",
	})
	clientsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "syncpad_clients",
		Help: "Number of connected clients.",
	})
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "syncpad_room_events_total",
		Help: "Room events processed, by packet type.",
	}, []string{"type"})
)
