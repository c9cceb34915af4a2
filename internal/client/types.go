package client

type IngestResponse struct {
	StatusCode int
	Body       string
	RequestID  string
}
