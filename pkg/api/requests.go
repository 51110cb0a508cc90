package api

// StartPipelineRequest is the HTTP request body for POST
// /pipeline/start (spec.md §6).
type StartPipelineRequest struct {
	ConnectorName   string  `json:"connector_name"`
	ConnectorType   string  `json:"connector_type,omitempty"`
	APIDocURL       *string `json:"api_doc_url,omitempty"`
	OriginalRequest string  `json:"original_request,omitempty"`
}

// ResumePipelineRequest is the HTTP request body for POST
// /pipeline/resume (spec.md §6).
type ResumePipelineRequest struct {
	ThreadID string `json:"thread_id"`
}
