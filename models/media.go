package models

// Media status
const (
	MediaStatusPending  = "pending"
	MediaStatusUploaded = "uploaded"
	MediaStatusFailed   = "failed"
)

// MediaMaxAttempts is how often an archive upload is tried before giving up
const MediaMaxAttempts = 3

// Media is one analysis image queued for archiving. Key is content-addressed
// so the same photo uploaded twice lands on the same object.
type Media struct {
	AnalysisID  string `json:"analysis_id"`
	ImageID     string `json:"image_id"`
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentHash string `json:"content_hash"`
	MimeType    string `json:"mime_type"`
	Data        []byte `json:"-"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
}
