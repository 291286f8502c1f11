// Package server provides the HTTP job API for motion-transfer runs.
// DTOs live here, separate from the job types they are mapped from.
package server

import "time"

// CreateJobRequest is the HTTP request body for creating a new job.
type CreateJobRequest struct {
	// ImageBase64 is the base64-encoded source image.
	ImageBase64 string `json:"image_base64" validate:"required,base64"`
	// VideoBase64 is the base64-encoded driving video.
	VideoBase64 string `json:"video_base64" validate:"required,base64"`
	// Quality is the x264 CRF of the cropped video. Defaults to 18.
	Quality *int `json:"quality,omitempty" validate:"omitempty,crf"`
	// Model is vox-256 (default) or vox-adv-256.
	Model string `json:"model,omitempty" validate:"omitempty,variant"`
	// Relative maps motion relative to the first driving frame.
	Relative bool `json:"relative"`
	// OutputName is the result file name. Defaults to output.mp4.
	OutputName string `json:"output_name,omitempty" validate:"omitempty,max=255"`
	// PushToS3 publishes the result to S3 instead of returning it inline.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	// Stage is the pipeline stage the job is in, or failed at.
	Stage    string `json:"stage,omitempty"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
	// VideoBase64 is the result video when completed without push_to_s3.
	VideoBase64 string `json:"video_base64,omitempty"`
	// VideoURL is the published result when completed with push_to_s3.
	VideoURL  string    `json:"video_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
