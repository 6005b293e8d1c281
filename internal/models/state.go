package models

import "github.com/google/uuid"

// Status is the lifecycle state of a word request
type Status string

const (
	StatusIdle            Status = "IDLE"
	StatusAnalyzing       Status = "ANALYZING"
	StatusGeneratingMedia Status = "GENERATING_MEDIA"
	StatusComplete        Status = "COMPLETE"
	StatusError           Status = "ERROR"
)

// Busy reports whether a pipeline is running in this status.
func (s Status) Busy() bool {
	return s == StatusAnalyzing || s == StatusGeneratingMedia
}

// RequestState is the whole view-facing state of the current request.
// ImageURLs and ImageErrors are indexed 1:1 with the analysis scenes.
type RequestState struct {
	RequestID   uuid.UUID     `json:"request_id"`
	Status      Status        `json:"status"`
	Data        *WordAnalysis `json:"data,omitempty"`
	ImageURLs   []*string     `json:"image_urls"`
	ImageErrors []*string     `json:"image_errors"`
	AudioData   []byte        `json:"-"`
	HasAudio    bool          `json:"has_audio"`
	Error       string        `json:"error,omitempty"`
}

// NewRequestState returns an idle state with an empty slot list
func NewRequestState() RequestState {
	return RequestState{
		Status:      StatusIdle,
		ImageURLs:   []*string{},
		ImageErrors: []*string{},
	}
}

// ResetSlots replaces both slot lists with n pending slots.
func (s *RequestState) ResetSlots(n int) {
	s.ImageURLs = make([]*string, n)
	s.ImageErrors = make([]*string, n)
}

// SetSlot stores the outcome of slot i. A non-nil url clears the error so a slot
// never carries both.
func (s *RequestState) SetSlot(i int, url, errMsg *string) bool {
	if i < 0 || i >= len(s.ImageURLs) || i >= len(s.ImageErrors) {
		return false
	}
	if url != nil {
		errMsg = nil
	}
	s.ImageURLs[i] = copyStr(url)
	s.ImageErrors[i] = copyStr(errMsg)
	return true
}

// Clone returns a deep copy safe to hand to collaborators
func (s RequestState) Clone() RequestState {
	c := s
	c.Data = s.Data.Clone()
	c.ImageURLs = make([]*string, len(s.ImageURLs))
	for i, u := range s.ImageURLs {
		c.ImageURLs[i] = copyStr(u)
	}
	c.ImageErrors = make([]*string, len(s.ImageErrors))
	for i, e := range s.ImageErrors {
		c.ImageErrors[i] = copyStr(e)
	}
	if s.AudioData != nil {
		c.AudioData = append([]byte(nil), s.AudioData...)
	}
	c.HasAudio = len(s.AudioData) > 0
	return c
}

func copyStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
