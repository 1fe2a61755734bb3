package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/discoursekg/discoursekg/internal/journal"
	"github.com/discoursekg/discoursekg/internal/scheduler"
)

// StatusHandler reports pipeline progress from the journal.
type StatusHandler struct {
	environment string
	journal     *journal.Journal
	sched       *scheduler.Scheduler
}

// NewStatusHandler creates a new status handler for the environment's
// journal.
func NewStatusHandler(environment string, j *journal.Journal) *StatusHandler {
	return &StatusHandler{
		environment: environment,
		journal:     j,
	}
}

// WithScheduler wires the scheduler whose entries are reported.
func (h *StatusHandler) WithScheduler(s *scheduler.Scheduler) *StatusHandler {
	h.sched = s
	return h
}

// StatusResponse summarizes the journal by status and next stage.
type StatusResponse struct {
	Environment string `json:"environment"`
	Items       int    `json:"items"`
	// ByStatus counts items per journal status.
	ByStatus map[string]int `json:"by_status"`
	// ByNextStage counts items per pending stage; items past the last
	// stage count under "done".
	ByNextStage map[string]int          `json:"by_next_stage"`
	Schedules   []scheduler.EntryStatus `json:"schedules,omitempty"`
}

// StatusInput is the input for the status endpoint.
type StatusInput struct{}

// StatusOutput is the output for the status endpoint.
type StatusOutput struct {
	Body StatusResponse
}

// Register registers the status route with the API.
func (h *StatusHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      "GET",
		Path:        "/api/v1/status",
		Summary:     "Pipeline status",
		Description: "Returns item counts by status and next stage, plus configured schedules",
		Tags:        []string{"Pipeline"},
	}, h.GetStatus)
}

// GetStatus returns the journal summary.
func (h *StatusHandler) GetStatus(ctx context.Context, input *StatusInput) (*StatusOutput, error) {
	states := h.journal.All()

	byStatus := make(map[string]int)
	byNextStage := make(map[string]int)
	for _, s := range states {
		byStatus[string(s.Status)]++
		if s.NextStage != nil {
			byNextStage[s.NextStage.String()]++
		} else {
			byNextStage["done"]++
		}
	}

	resp := StatusResponse{
		Environment: h.environment,
		Items:       len(states),
		ByStatus:    byStatus,
		ByNextStage: byNextStage,
	}
	if h.sched != nil {
		resp.Schedules = h.sched.Status()
	}

	return &StatusOutput{Body: resp}, nil
}
