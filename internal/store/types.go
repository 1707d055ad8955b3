package store

// Track statuses.
const (
	TrackPending    = "pending"
	TrackProcessing = "processing"
	TrackReady      = "ready"
	TrackFailed     = "failed"
)

// Job statuses.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobDone       = "done"
	JobFailed     = "failed"
)

// Source types.
const (
	SourceUpload  = "upload"
	SourceYouTube = "youtube"
)

// Track is one submitted song and its ingestion state.
type Track struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Artist           string   `json:"artist"`
	Submitter        string   `json:"submitter"`
	SourceType       string   `json:"source_type"`
	SourceURL        *string  `json:"source_url"`
	FilePath         *string  `json:"-"`
	DurationS        *float64 `json:"duration_s"`
	TempoBPM         *float64 `json:"tempo_bpm,omitempty"`
	RMSEnergy        *float64 `json:"rms_energy,omitempty"`
	SpectralCentroid *float64 `json:"spectral_centroid,omitempty"`
	ZeroCrossingRate *float64 `json:"zero_crossing_rate,omitempty"`
	Status           string   `json:"status"`
	ErrorMsg         *string  `json:"error_msg"`
	SubmittedAt      string   `json:"submitted_at"`
	ReadyAt          *string  `json:"ready_at"`
	Comment          *string  `json:"comment,omitempty"`
	YouTubeVideoID   *string  `json:"youtube_video_id,omitempty"`
}

// Job is a single ingestion unit of work for a track.
type Job struct {
	ID         int64   `json:"id"`
	TrackID    string  `json:"track_id"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	StartedAt  *string `json:"started_at"`
	FinishedAt *string `json:"finished_at"`
	ErrorMsg   *string `json:"error_msg"`
}

// PlayEvent records one track start reported by the streaming engine.
type PlayEvent struct {
	ID       int64  `json:"id"`
	TrackID  string `json:"track_id"`
	PlayedAt string `json:"played_at"`
}

// PushSubscription is a stored web-push endpoint.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// PlayedTrack joins a play event with its track, for the status page.
type PlayedTrack struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Artist    string   `json:"artist"`
	Submitter string   `json:"submitter"`
	DurationS *float64 `json:"duration_s,omitempty"`
	PlayedAt  string   `json:"played_at"`
}

// Candidate is a ready track with its lifetime play count, used by the
// rotation policy's weighted pick.
type Candidate struct {
	Track
	PlayCount int
}
