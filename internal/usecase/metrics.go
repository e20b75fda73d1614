package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faces_submissions_total",
			Help: "Photo submissions by terminal outcome.",
		},
		[]string{"outcome"},
	)

	faceCountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faces_detected_faces_total",
			Help: "Face-check results bucketed by detected face count.",
		},
		[]string{"faces"},
	)

	orphanedPublishesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faces_orphaned_publishes_total",
		Help: "Photos published without a metadata record because persistence failed.",
	})

	queryCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faces_query_cache_total",
			Help: "Bounding-box query cache lookups by result.",
		},
		[]string{"result"},
	)
)

func faceBucket(count int) string {
	switch {
	case count <= 0:
		return "0"
	case count == 1:
		return "1"
	default:
		return "many"
	}
}
