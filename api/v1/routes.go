package v1

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/Cobb-ukr/ai-test-agent/common/commonerr"
	"github.com/Cobb-ukr/ai-test-agent/database"
	"github.com/Cobb-ukr/ai-test-agent/sandbox"
)

const (
	postSubmissionRoute     = "v1/postSubmission"
	getSubmissionRoute      = "v1/getSubmission"
	postRunRoute            = "v1/postRun"
	getRunRoute             = "v1/getRun"
	streamRunRoute          = "v1/streamRun"
	postReportRoute         = "v1/postReport"
	downloadReportRoute     = "v1/downloadReport"
	getNotificationRoute    = "v1/getNotification"
	deleteNotificationRoute = "v1/deleteNotification"
	getMetricsRoute         = "v1/getMetrics"

	// maxBodySize restricts client request bodies to 1MiB.
	maxBodySize int64 = 1048576

	// streamPollInterval is how often a websocket stream re-reads its run.
	streamPollInterval = time.Second
)

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
}

func writeResponse(w http.ResponseWriter, r *http.Request, status int, resp interface{}) {
	// Headers must be written before the response.
	header := w.Header()
	header.Set("Content-Type", "application/json;charset=utf-8")
	header.Set("Server", "ai-test-agent")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(resp)
	if err != nil {
		switch err.(type) {
		case *json.MarshalerError, *json.UnsupportedTypeError, *json.UnsupportedValueError:
			panic("v1: failed to marshal response: " + err.Error())
		default:
			log.WithError(err).WithField("remote addr", r.RemoteAddr).Warning("failed to write response")
		}
	}
}

// storeStatus maps a datastore error to an HTTP status code.
func storeStatus(err error) int {
	switch {
	case err == commonerr.ErrNotFound:
		return http.StatusNotFound
	case err == commonerr.ErrBackendException || err == database.ErrBackendException:
		return http.StatusInternalServerError
	default:
		if _, ok := err.(*commonerr.ErrBadRequest); ok {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

func postSubmission(w http.ResponseWriter, r *http.Request, p httprouter.Params, env *Env) (string, int) {
	request := SubmissionEnvelope{}
	err := decodeJSON(r, &request)
	if err != nil {
		writeResponse(w, r, http.StatusBadRequest, SubmissionEnvelope{Error: &Error{"failed to parse the request body, it may not be JSON"}})
		return postSubmissionRoute, http.StatusBadRequest
	}
	if request.Submission == nil {
		writeResponse(w, r, http.StatusBadRequest, SubmissionEnvelope{Error: &Error{"failed to provide submission"}})
		return postSubmissionRoute, http.StatusBadRequest
	}

	submission := database.Submission{
		Language: strings.TrimSpace(request.Submission.Language),
		Function: strings.TrimSpace(request.Submission.Function),
		Source:   request.Submission.Source,
	}
	if _, err := sandbox.Language(submission.Language); err != nil {
		writeResponse(w, r, http.StatusBadRequest, SubmissionEnvelope{Error: &Error{err.Error()}})
		return postSubmissionRoute, http.StatusBadRequest
	}

	id, err := env.Store.InsertSubmission(submission)
	if err != nil {
		status := storeStatus(err)
		writeResponse(w, r, status, SubmissionEnvelope{Error: &Error{err.Error()}})
		return postSubmissionRoute, status
	}
	submission.ID = id

	runID, err := env.Runs.StartRun(submission)
	if err != nil {
		status := storeStatus(err)
		writeResponse(w, r, status, SubmissionEnvelope{Error: &Error{err.Error()}})
		return postSubmissionRoute, status
	}

	resp := SubmissionFromDatabaseModel(submission, false, false)
	resp.Runs = []Run{{ID: runID, SubmissionID: id, Status: string(database.PendingStatus)}}
	writeResponse(w, r, http.StatusCreated, SubmissionEnvelope{Submission: &resp})
	return postSubmissionRoute, http.StatusCreated
}

func getSubmission(w http.ResponseWriter, r *http.Request, p httprouter.Params, env *Env) (string, int) {
	id, err := strconv.Atoi(p.ByName("submissionID"))
	if err != nil {
		writeResponse(w, r, http.StatusBadRequest, SubmissionEnvelope{Error: &Error{"invalid submission ID"}})
		return getSubmissionRoute, http.StatusBadRequest
	}

	dbSubmission, err := env.Store.FindSubmission(id, true)
	if err != nil {
		status := storeStatus(err)
		writeResponse(w, r, status, SubmissionEnvelope{Error: &Error{err.Error()}})
		return getSubmissionRoute, status
	}

	submission := SubmissionFromDatabaseModel(dbSubmission, true, true)
	writeResponse(w, r, http.StatusOK, SubmissionEnvelope{Submission: &submission})
	return getSubmissionRoute, http.StatusOK
}

func postRun(w http.ResponseWriter, r *http.Request, p httprouter.Params, env *Env) (string, int) {
	id, err := strconv.Atoi(p.ByName("submissionID"))
	if err != nil {
		writeResponse(w, r, http.StatusBadRequest, RunEnvelope{Error: &Error{"invalid submission ID"}})
		return postRunRoute, http.StatusBadRequest
	}

	dbSubmission, err := env.Store.FindSubmission(id, false)
	if err != nil {
		status := storeStatus(err)
		writeResponse(w, r, status, RunEnvelope{Error: &Error{err.Error()}})
		return postRunRoute, status
	}

	runID, err := env.Runs.StartRun(dbSubmission)
	if err != nil {
		status := storeStatus(err)
		writeResponse(w, r, status, RunEnvelope{Error: &Error{err.Error()}})
		return postRunRoute, status
	}

	run := Run{ID: runID, SubmissionID: id, Status: string(database.PendingStatus)}
	writeResponse(w, r, http.StatusCreated, RunEnvelope{Run: &run})
	return postRunRoute, http.StatusCreated
}

func getRun(w http.ResponseWriter, r *http.Request, p httprouter.Params, env *Env) (string, int) {
	id, err := strconv.Atoi(p.ByName("runID"))
	if err != nil {
		writeResponse(w, r, http.StatusBadRequest, RunEnvelope{Error: &Error{"invalid run ID"}})
		return getRunRoute, http.StatusBadRequest
	}

	dbRun, err := env.Store.FindRun(id)
	if err != nil {
		status := storeStatus(err)
		writeResponse(w, r, status, RunEnvelope{Error: &Error{err.Error()}})
		return getRunRoute, status
	}

	run := RunFromDatabaseModel(dbRun, true)
	writeResponse(w, r, http.StatusOK, RunEnvelope{Run: &run})
	return getRunRoute, http.StatusOK
}

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamRun pushes the run state over a websocket until the run reaches a
// terminal status or the client goes away.
func streamRun(w http.ResponseWriter, r *http.Request, p httprouter.Params, env *Env) (string, int) {
	id, err := strconv.Atoi(p.ByName("runID"))
	if err != nil {
		writeResponse(w, r, http.StatusBadRequest, RunEnvelope{Error: &Error{"invalid run ID"}})
		return streamRunRoute, http.StatusBadRequest
	}

	if _, err := env.Store.FindRun(id); err != nil {
		status := storeStatus(err)
		writeResponse(w, r, status, RunEnvelope{Error: &Error{err.Error()}})
		return streamRunRoute, status
	}

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		return streamRunRoute, http.StatusBadRequest
	}
	defer conn.Close()

	var lastStatus database.RunStatus
	for {
		dbRun, err := env.Store.FindRun(id)
		if err != nil {
			conn.WriteJSON(RunEnvelope{Error: &Error{err.Error()}})
			break
		}

		if dbRun.Status != lastStatus {
			lastStatus = dbRun.Status
			run := RunFromDatabaseModel(dbRun, dbRun.Status.Terminal())
			if err := conn.WriteJSON(RunEnvelope{Run: &run}); err != nil {
				break
			}
		}

		if dbRun.Status.Terminal() {
			break
		}

		select {
		case <-r.Context().Done():
			return streamRunRoute, http.StatusOK
		case <-time.After(streamPollInterval):
		}
	}

	return streamRunRoute, http.StatusOK
}

func postReport(w http.ResponseWriter, r *http.Request, p httprouter.Params, env *Env) (string, int) {
	id, err := strconv.Atoi(p.ByName("runID"))
	if err != nil {
		writeResponse(w, r, http.StatusBadRequest, ReportEnvelope{Error: &Error{"invalid run ID"}})
		return postReportRoute, http.StatusBadRequest
	}

	dbRun, err := env.Store.FindRun(id)
	if err != nil {
		status := storeStatus(err)
		writeResponse(w, r, status, ReportEnvelope{Error: &Error{err.Error()}})
		return postReportRoute, status
	}

	if !dbRun.Status.Terminal() {
		writeResponse(w, r, http.StatusConflict, ReportEnvelope{Error: &Error{"no test results found, run tests first"}})
		return postReportRoute, http.StatusConflict
	}

	dbSubmission, err := env.Store.FindSubmission(dbRun.SubmissionID, false)
	if err != nil {
		status := storeStatus(err)
		writeResponse(w, r, status, ReportEnvelope{Error: &Error{err.Error()}})
		return postReportRoute, status
	}

	dbReport, err := env.Reports.Generate(dbSubmission, dbRun)
	if err != nil {
		log.WithError(err).WithField("run", id).Error("could not render report")
		writeResponse(w, r, http.StatusInternalServerError, ReportEnvelope{Error: &Error{"could not render report"}})
		return postReportRoute, http.StatusInternalServerError
	}

	reportID, err := env.Store.InsertReport(dbReport)
	if err != nil {
		status := storeStatus(err)
		writeResponse(w, r, status, ReportEnvelope{Error: &Error{err.Error()}})
		return postReportRoute, status
	}
	dbReport.ID = reportID

	report := ReportFromDatabaseModel(dbReport)
	writeResponse(w, r, http.StatusCreated, ReportEnvelope{Report: &report})
	return postReportRoute, http.StatusCreated
}

func downloadReport(w http.ResponseWriter, r *http.Request, p httprouter.Params, env *Env) (string, int) {
	id, err := strconv.Atoi(p.ByName("reportID"))
	if err != nil {
		writeResponse(w, r, http.StatusBadRequest, ReportEnvelope{Error: &Error{"invalid report ID"}})
		return downloadReportRoute, http.StatusBadRequest
	}

	dbReport, err := env.Store.FindReport(id)
	if err != nil {
		status := storeStatus(err)
		writeResponse(w, r, status, ReportEnvelope{Error: &Error{err.Error()}})
		return downloadReportRoute, status
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+dbReport.Filename+`"`)
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, dbReport.Path)
	return downloadReportRoute, http.StatusOK
}

func getNotification(w http.ResponseWriter, r *http.Request, p httprouter.Params, env *Env) (string, int) {
	dbNotification, err := env.Store.FindRunNotification(p.ByName("notificationName"))
	if err != nil {
		status := storeStatus(err)
		writeResponse(w, r, status, NotificationEnvelope{Error: &Error{err.Error()}})
		return getNotificationRoute, status
	}

	notification := NotificationFromDatabaseModel(dbNotification)
	writeResponse(w, r, http.StatusOK, NotificationEnvelope{Notification: &notification})
	return getNotificationRoute, http.StatusOK
}

func deleteNotification(w http.ResponseWriter, r *http.Request, p httprouter.Params, env *Env) (string, int) {
	err := env.Store.DeleteNotification(p.ByName("notificationName"))
	if err != nil {
		status := storeStatus(err)
		writeResponse(w, r, status, NotificationEnvelope{Error: &Error{err.Error()}})
		return deleteNotificationRoute, status
	}

	w.WriteHeader(http.StatusOK)
	return deleteNotificationRoute, http.StatusOK
}

func getMetrics(w http.ResponseWriter, r *http.Request, p httprouter.Params, env *Env) (string, int) {
	promhttp.Handler().ServeHTTP(w, r)
	return getMetricsRoute, http.StatusOK
}
