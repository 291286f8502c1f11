package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/h2non/filetype"

	"github.com/maauso/motiontransfer/internal/job"
	"github.com/maauso/motiontransfer/internal/media"
	"github.com/maauso/motiontransfer/internal/pipeline"
)

// maxBodyBytes bounds the JSON body of POST /jobs.
const maxBodyBytes = 256 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.RunService
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only stores the job; it stays IN_QUEUE.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.RunService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	_ = pipeline.RegisterValidations(v)
	h := &Handlers{
		service:            service,
		validator:          v,
		logger:             logger,
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	image, err := decodeMedia(req.ImageBase64, filetype.IsImage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "image_base64: "+err.Error(), "INVALID_MEDIA")
		return
	}
	video, err := decodeMedia(req.VideoBase64, filetype.IsVideo)
	if err != nil {
		writeError(w, http.StatusBadRequest, "video_base64: "+err.Error(), "INVALID_MEDIA")
		return
	}

	input := job.CreateJobInput{
		SourceImage:  job.Upload{Name: image.name, Data: bytes.NewReader(image.data)},
		DrivingVideo: job.Upload{Name: video.name, Data: bytes.NewReader(video.data)},
		Quality:      media.DefaultQuality,
		Model:        req.Model,
		Relative:     req.Relative,
		OutputName:   req.OutputName,
		PushToS3:     req.PushToS3,
	}
	if req.Quality != nil {
		input.Quality = *req.Quality
	}

	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		if errors.Is(err, job.ErrPublishUnavailable) {
			writeError(w, http.StatusBadRequest, err.Error(), "S3_NOT_CONFIGURED")
			return
		}
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// The run outlives the request.
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			if _, processErr := h.service.ProcessExistingJob(ctx, jobID); processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.String("image_type", image.mime),
		slog.String("video_type", video.mime),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeLookupError(w, jobID, err)
		return
	}

	resp := toJobResponse(foundJob)
	if foundJob.Status == job.StatusCompleted && foundJob.VideoURL == "" && foundJob.OutputVideoPath != "" {
		videoData, err := os.ReadFile(foundJob.OutputVideoPath)
		if err != nil {
			// The job stays readable without the payload.
			h.logger.Error("failed to read output video",
				slog.String("job_id", jobID),
				slog.String("path", foundJob.OutputVideoPath),
				slog.String("error", err.Error()),
			)
		} else {
			resp.VideoBase64 = base64.StdEncoding.EncodeToString(videoData)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListJobs handles GET /jobs requests. Video payloads are never included.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_FETCH_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteJob handles DELETE /jobs/{id} requests.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	if err := h.service.DeleteJob(r.Context(), jobID); err != nil {
		if errors.Is(err, job.ErrJobActive) {
			writeError(w, http.StatusConflict, err.Error(), "JOB_ACTIVE")
			return
		}
		h.writeLookupError(w, jobID, err)
		return
	}

	h.logger.Info("job deleted", slog.String("job_id", jobID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) writeLookupError(w http.ResponseWriter, jobID string, err error) {
	if errors.Is(err, job.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return
	}
	h.logger.Error("failed to get job",
		slog.String("job_id", jobID),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
}

func toJobResponse(j *job.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Status:    string(j.Status),
		Stage:     j.Stage,
		Progress:  j.Progress,
		Error:     j.Error,
		VideoURL:  j.VideoURL,
		CreatedAt: j.CreatedAt,
	}
}

// upload is a decoded media payload named after its sniffed type.
type upload struct {
	name string
	mime string
	data []byte
}

var errUnsupportedMedia = errors.New("unsupported media type")

// decodeMedia decodes a base64 payload and checks its magic bytes with accept.
func decodeMedia(encoded string, accept func([]byte) bool) (upload, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return upload{}, err
	}
	if !accept(data) {
		return upload{}, errUnsupportedMedia
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return upload{}, errUnsupportedMedia
	}
	return upload{name: "upload." + kind.Extension, mime: kind.MIME.Value, data: data}, nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
