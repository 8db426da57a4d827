package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vidsnatch/internal/api"
	"vidsnatch/internal/folder"
	"vidsnatch/internal/jobs"
	"vidsnatch/internal/logging"
)

const (
	maxRequestBody = 1 << 20
	// eventsPollTimeout keeps a follow request under the server write timeout.
	eventsPollTimeout = 25 * time.Second
	defaultEventLimit = 100
	pickerWriteWindow = 3 * time.Minute
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind string, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(bind),
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /download", s.handleDownload)
	mux.HandleFunc("GET /progress/{id}", s.handleProgress)
	mux.HandleFunc("POST /cancel/{id}", s.handleCancel)
	mux.HandleFunc("POST /retry/{id}", s.handleRetry)
	mux.HandleFunc("POST /delete/{id}", s.handleDelete)
	mux.HandleFunc("POST /clear/{id}", s.handleClear)
	mux.HandleFunc("GET /jobs", s.handleJobs)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /current-folder", s.handleCurrentFolder)
	mux.HandleFunc("POST /select-folder", s.handleSelectFolder)
	mux.HandleFunc("POST /open-folder", s.handleOpenFolder)
	mux.HandleFunc("POST /stop-server", s.handleStopServer)
	mux.HandleFunc("POST /delete-partial-file/{filename}", s.handleDeletePartial)
	mux.HandleFunc("GET /find-failed-download-for-file/{filename}", s.handleFindFailed)
	mux.HandleFunc("POST /find-failed-download-for-file/{filename}", s.handleFindFailed)
	return corsMiddleware(requestIDMiddleware(s.log(), mux))
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api listen: paths.api_bind is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) jobs() *jobs.Service {
	return s.daemon.jobs
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req api.DownloadRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.jobs().Submit(r.Context(), jobs.SubmitRequest{
		URL:         req.URL,
		Title:       req.Title,
		OpenFolder:  req.OpenFolder,
		Destination: req.Destination,
	})
	if jobs.KindOf(err) == jobs.KindFilesystem {
		// An unusable destination override is the caller's input.
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	message := "Download started"
	if result.PreviousAttempts > 0 {
		message = fmt.Sprintf("Download started (failed %d time(s) before)", result.PreviousAttempts)
	}
	s.writeJSON(w, http.StatusOK, api.DownloadResponse{
		Success:          true,
		DownloadID:       result.Job.ID,
		URL:              result.Job.SourceURL,
		Title:            result.Job.DisplayTitle,
		Message:          message,
		PreviousAttempts: result.PreviousAttempts,
	})
}

func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.jobs().Progress(r.PathValue("id"))
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProgress(progress))
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs().Cancel(r.PathValue("id")); err != nil {
		s.writeJobError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SuccessResponse{Success: true})
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	count, err := s.jobs().Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, statusForError(err), api.RetryResponse{Success: false, Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, api.RetryResponse{Success: true, RetryCount: count})
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := s.jobs().Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	resp := api.DeleteResponse{Success: true, RemovedFiles: result.RemovedFiles}
	if resp.RemovedFiles == nil {
		resp.RemovedFiles = []string{}
	}
	if result.CleanupErr != nil {
		resp.Warning = result.CleanupErr.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleClear(w http.ResponseWriter, r *http.Request) {
	err := s.jobs().Clear(r.PathValue("id"))
	if jobs.KindOf(err) == jobs.KindInvalidState {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SuccessResponse{Success: true})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.JobsResponse{Downloads: api.FromJobs(s.jobs().List())})
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	hub := s.jobs().Events()
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultEventLimit
	}
	follow := queryFlag(query.Get("follow"))
	tail := queryFlag(query.Get("tail"))

	if tail && since == 0 && !follow {
		events, next := hub.Tail(limit)
		s.writeJSON(w, http.StatusOK, api.EventsResponse{Events: nonNilEvents(events), Next: next})
		return
	}

	ctx := r.Context()
	if follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eventsPollTimeout)
		defer cancel()
	}
	events, next, err := hub.Fetch(ctx, since, limit, follow)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if r.Context().Err() != nil {
		return
	}
	s.writeJSON(w, http.StatusOK, api.EventsResponse{Events: nonNilEvents(events), Next: next})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status()
	s.writeJSON(w, http.StatusOK, api.StatusResponse{
		Status:          "running",
		Message:         "VidSnatch server is running",
		ActiveDownloads: status.ActiveDownloads,
		DownloadDir:     status.DownloadDir,
		Version:         status.Version,
	})
}

func (s *apiServer) handleCurrentFolder(w http.ResponseWriter, r *http.Request) {
	dir := s.jobs().Destination()
	s.writeJSON(w, http.StatusOK, api.FolderResponse{
		Status: "success",
		Folder: filepath.Base(dir),
		Path:   dir,
	})
}

func (s *apiServer) handleSelectFolder(w http.ResponseWriter, r *http.Request) {
	var req api.SelectFolderRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	chosen := strings.TrimSpace(req.Path)
	if chosen == "" {
		picker := s.daemon.picker
		if picker == nil {
			s.writeJSON(w, http.StatusNotImplemented, api.SelectFolderResponse{Error: folder.ErrUnsupported.Error()})
			return
		}
		// The dialog waits on the user; lift the write deadline for it.
		_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(pickerWriteWindow))
		path, err := picker.Choose(r.Context(), s.jobs().Destination())
		switch {
		case errors.Is(err, folder.ErrCancelled):
			s.writeJSON(w, http.StatusOK, api.SelectFolderResponse{Success: false, Cancelled: true})
			return
		case errors.Is(err, folder.ErrUnsupported):
			s.writeJSON(w, http.StatusNotImplemented, api.SelectFolderResponse{Error: err.Error()})
			return
		case err != nil:
			s.writeJSON(w, http.StatusInternalServerError, api.SelectFolderResponse{Error: err.Error()})
			return
		}
		chosen = path
	}

	dir, err := s.jobs().SetDestination(chosen)
	if err != nil {
		s.writeJSON(w, statusForError(err), api.SelectFolderResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, api.SelectFolderResponse{Success: true, Path: dir})
}

func (s *apiServer) handleOpenFolder(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs().OpenDestination(); err != nil {
		s.writeJSON(w, http.StatusInternalServerError, api.SuccessResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, api.SuccessResponse{
		Success: true,
		Message: "Opened " + s.jobs().Destination(),
	})
}

func (s *apiServer) handleStopServer(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.SuccessResponse{Success: true, Message: "Server is shutting down"})
	s.log().Info("stop requested over api")
	s.daemon.RequestStop()
}

func (s *apiServer) handleDeletePartial(w http.ResponseWriter, r *http.Request) {
	removed, err := s.jobs().DeletePartial(r.PathValue("filename"))
	if err != nil {
		s.writeJSON(w, statusForError(err), api.DeletePartialResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeletePartialResponse{Success: true, Removed: removed})
}

func (s *apiServer) handleFindFailed(w http.ResponseWriter, r *http.Request) {
	match, found, err := s.jobs().FindFailedForFile(r.Context(), r.PathValue("filename"))
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	if !found {
		s.writeJSON(w, http.StatusOK, api.FindFailedResponse{Found: false})
		return
	}
	s.writeJSON(w, http.StatusOK, api.FindFailedResponse{
		Found:      true,
		DownloadID: match.JobID,
		URL:        match.URL,
		Title:      match.Title,
		Similarity: match.Similarity,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func queryFlag(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

func nonNilEvents(events []jobs.Event) []jobs.Event {
	if events == nil {
		return []jobs.Event{}
	}
	return events
}

func statusForError(err error) int {
	switch jobs.KindOf(err) {
	case jobs.KindValidation:
		return http.StatusBadRequest
	case jobs.KindNotFound:
		return http.StatusNotFound
	case jobs.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJobError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.log()), "api request failed", "api_error",
			logging.String("path", r.URL.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the client request was not completed"),
			logging.String(logging.FieldErrorHint, "check the download directory and server logs"),
		)
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Success: false, Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
