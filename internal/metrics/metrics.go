package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_errors_total",
			Help: "Total number of occurred errors.",
		},
		[]string{"type"},
	)
	TasksEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_enqueued_total",
			Help: "Total number of tasks persisted per queue.",
		},
		[]string{"queue"},
	)
	TasksProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_processed_total",
			Help: "Total number of task deliveries per queue and outcome.",
		},
		[]string{"queue", "outcome"},
	)
	TaskDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "pipeline_task_duration_seconds",
			Help:       "Duration of each task execution per queue.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"queue"},
	)
	StageStepDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "pipeline_stage_step_duration_seconds",
			Help:       "Duration of each external call within a stage.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step"},
	)
	PostingsDiscovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_postings_discovered_total",
			Help: "Total number of newly discovered postings.",
		},
	)
	PostingsShortlisted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_postings_shortlisted_total",
			Help: "Total number of postings that passed the fit threshold.",
		},
	)
	PostingsArchived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_postings_archived_total",
			Help: "Total number of postings archived below the fit threshold.",
		},
	)
	ComplianceOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_compliance_outcomes_total",
			Help: "Total number of compliance verdicts by outcome.",
		},
		[]string{"outcome"},
	)
)

func StartMetricsServer(address string) {

	prometheus.MustRegister(ErrorsCounter)
	prometheus.MustRegister(TasksEnqueued)
	prometheus.MustRegister(TasksProcessed)
	prometheus.MustRegister(TaskDuration)
	prometheus.MustRegister(StageStepDuration)
	prometheus.MustRegister(PostingsDiscovered)
	prometheus.MustRegister(PostingsShortlisted)
	prometheus.MustRegister(PostingsArchived)
	prometheus.MustRegister(ComplianceOutcomes)

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Fatal(http.ListenAndServe(address, nil))
	}()
}
