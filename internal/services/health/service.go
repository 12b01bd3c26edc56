package health

import "time"

// Service reports liveness and which model backs the analyses.
type Service struct {
	provider  string
	model     string
	startedAt time.Time
}

// NewService constructs a new health service.
func NewService(provider, model string) *Service {
	return &Service{provider: provider, model: model, startedAt: time.Now()}
}

// Status is the health payload.
type Status struct {
	OK            bool   `json:"ok"`
	Provider      string `json:"provider"`
	Model         string `json:"model,omitempty"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

// Status returns the current health payload.
func (s *Service) Status() Status {
	return Status{
		OK:            true,
		Provider:      s.provider,
		Model:         s.model,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
}
