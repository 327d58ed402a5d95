package attendance

import "github.com/prometheus/client_golang/prometheus"

var (
	markedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_marked_total",
		Help: "Attendance records created successfully.",
	})

	rejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_rejected_total",
			Help: "Attendance attempts rejected, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(markedTotal, rejectedTotal)
}
