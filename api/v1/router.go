package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/Cobb-ukr/ai-test-agent/database"
	"github.com/Cobb-ukr/ai-test-agent/generate"
	"github.com/Cobb-ukr/ai-test-agent/report"
)

var (
	promResponseDurationMilliseconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aitestagent_api_response_duration_milliseconds",
		Help:    "The duration of time it takes to receieve and write a response to an API request",
		Buckets: prometheus.ExponentialBuckets(9.375, 2, 10),
	}, []string{"route", "code"})
)

func init() {
	prometheus.MustRegister(promResponseDurationMilliseconds)
}

type handler func(http.ResponseWriter, *http.Request, httprouter.Params, *Env) (route string, status int)

func httpHandler(h handler, env *Env) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		start := time.Now()
		route, status := h(w, r, p, env)
		statusStr := strconv.Itoa(status)
		if status == 0 {
			statusStr = "???"
		}

		promResponseDurationMilliseconds.
			WithLabelValues(route, statusStr).
			Observe(float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond))

		log.WithFields(log.Fields{"remote addr": r.RemoteAddr, "method": r.Method, "request uri": r.RequestURI, "status": statusStr, "elapsed time": time.Since(start)}).Info("Handled HTTP request")
	}
}

// Env carries the services the v1 handlers operate on.
type Env struct {
	Store   database.Datastore
	Runs    *generate.Service
	Reports *report.Service
}

// NewRouter creates an HTTP router for version 1 of the ai-test-agent API.
func NewRouter(env *Env) *httprouter.Router {
	router := httprouter.New()

	// Submissions
	router.POST("/submissions", httpHandler(postSubmission, env))
	router.GET("/submissions/:submissionID", httpHandler(getSubmission, env))
	router.POST("/submissions/:submissionID/runs", httpHandler(postRun, env))

	// Runs
	router.GET("/runs/:runID", httpHandler(getRun, env))
	router.GET("/runs/:runID/stream", httpHandler(streamRun, env))
	router.POST("/runs/:runID/report", httpHandler(postReport, env))

	// Reports
	router.GET("/reports/:reportID/download", httpHandler(downloadReport, env))

	// Notifications
	router.GET("/notifications/:notificationName", httpHandler(getNotification, env))
	router.DELETE("/notifications/:notificationName", httpHandler(deleteNotification, env))

	// Metrics
	router.GET("/metrics", httpHandler(getMetrics, env))

	return router
}
