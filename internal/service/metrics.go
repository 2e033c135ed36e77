package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal — операции синхронизации по типу и результату.
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cs_operations_total",
			Help: "Количество операций синхронизации",
		},
		[]string{"operation", "result"},
	)

	// orphanedIngestsTotal — файлы, загруженные в канал без локальной записи.
	orphanedIngestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cs_orphaned_ingests_total",
		Help: "Количество загрузок, не записанных в хранилище записей",
	})
)

func observe(operation string, err *SyncError) {
	result := "success"
	if err != nil {
		result = err.Code
	}
	operationsTotal.WithLabelValues(operation, result).Inc()
}
