package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SavesTotal tracks Save calls by backend and result
	SavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_store_saves_total",
			Help: "Total number of payload saves",
		},
		[]string{"backend", "result"}, // "file"|"redis"|"discard", "ok"|"error"
	)

	// BytesTotal tracks persisted payload bytes by backend
	BytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_store_bytes_total",
			Help: "Total payload bytes persisted",
		},
		[]string{"backend"},
	)

	// StoreErrors tracks failed store operations
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_store_errors_total",
			Help: "Total number of store operation errors",
		},
		[]string{"backend", "operation"}, // "save", "load", "delete", "exists"
	)
)

func recordSave(backend string, size int, err error) {
	if err != nil {
		SavesTotal.WithLabelValues(backend, "error").Inc()
		StoreErrors.WithLabelValues(backend, "save").Inc()
		return
	}
	SavesTotal.WithLabelValues(backend, "ok").Inc()
	BytesTotal.WithLabelValues(backend).Add(float64(size))
}
