package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/discoursekg/discoursekg/internal/journal"
	"github.com/discoursekg/discoursekg/internal/models"
)

// ItemsHandler exposes journal records.
type ItemsHandler struct {
	journal *journal.Journal
}

// NewItemsHandler creates a new items handler.
func NewItemsHandler(j *journal.Journal) *ItemsHandler {
	return &ItemsHandler{journal: j}
}

// ItemSummary is the list representation of a journal record.
type ItemSummary struct {
	ID                   string    `json:"id"`
	Speaker              string    `json:"speaker"`
	ContentType          string    `json:"content_type"`
	Title                string    `json:"title,omitempty"`
	ContentDate          string    `json:"content_date,omitempty"`
	Status               string    `json:"status"`
	LatestCompletedStage *string   `json:"latest_completed_stage"`
	NextStage            *string   `json:"next_stage"`
	RetryCount           int       `json:"retry_count"`
	ErrorMessage         string    `json:"error_message,omitempty"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// ItemDetail is the full representation of a journal record.
type ItemDetail struct {
	ItemSummary
	SourceURL             string            `json:"source_url"`
	RunTimestamp          time.Time         `json:"run_timestamp"`
	CreatedAt             time.Time         `json:"created_at"`
	ProcessingTimeSeconds float64           `json:"processing_time_seconds"`
	FilePaths             map[string]string `json:"file_paths"`
	FailedOutput          string            `json:"failed_output,omitempty"`
}

func stageName(s *models.Stage) *string {
	if s == nil {
		return nil
	}
	name := s.String()
	return &name
}

// ItemSummaryFromState converts a journal record to its list form.
func ItemSummaryFromState(s *models.PipelineState) ItemSummary {
	return ItemSummary{
		ID:                   s.ID,
		Speaker:              s.Speaker,
		ContentType:          string(s.ContentType),
		Title:                s.Title,
		ContentDate:          s.ContentDate,
		Status:               string(s.Status),
		LatestCompletedStage: stageName(s.LatestCompletedStage),
		NextStage:            stageName(s.NextStage),
		RetryCount:           s.RetryCount,
		ErrorMessage:         s.ErrorMessage,
		UpdatedAt:            s.UpdatedAt,
	}
}

// ItemDetailFromState converts a journal record to its detail form.
func ItemDetailFromState(s *models.PipelineState) ItemDetail {
	paths := make(map[string]string, len(s.FilePaths))
	for stage, p := range s.FilePaths {
		paths[stage.String()] = p
	}
	return ItemDetail{
		ItemSummary:           ItemSummaryFromState(s),
		SourceURL:             s.SourceURL,
		RunTimestamp:          s.RunTimestamp,
		CreatedAt:             s.CreatedAt,
		ProcessingTimeSeconds: s.ProcessingTimeSeconds,
		FilePaths:             paths,
		FailedOutput:          s.FailedOutput,
	}
}

// ListItemsInput is the input for listing items.
type ListItemsInput struct {
	Stage   string `query:"stage" doc:"Only items whose next stage matches" enum:"discover,scrape,summarize,categorize,graph"`
	Status  string `query:"status" doc:"Only items with this status" enum:"PENDING,IN_PROGRESS,COMPLETED,FAILED,INVALIDATED"`
	Speaker string `query:"speaker" doc:"Only items for this speaker"`
}

// ListItemsOutput is the output for listing items.
type ListItemsOutput struct {
	Body struct {
		Items []ItemSummary `json:"items"`
	}
}

// GetItemInput is the input for getting an item.
type GetItemInput struct {
	ID string `path:"id" doc:"Item ID"`
}

// GetItemOutput is the output for getting an item.
type GetItemOutput struct {
	Body ItemDetail
}

// Register registers the item routes with the API.
func (h *ItemsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listItems",
		Method:      "GET",
		Path:        "/api/v1/items",
		Summary:     "List items",
		Description: "Returns journal records, oldest first, optionally filtered by next stage, status or speaker",
		Tags:        []string{"Pipeline"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getItem",
		Method:      "GET",
		Path:        "/api/v1/items/{id}",
		Summary:     "Get item",
		Description: "Returns one journal record by ID",
		Tags:        []string{"Pipeline"},
	}, h.GetByID)
}

// List returns journal records matching the filters.
func (h *ItemsHandler) List(ctx context.Context, input *ListItemsInput) (*ListItemsOutput, error) {
	resp := &ListItemsOutput{}
	resp.Body.Items = make([]ItemSummary, 0)

	for _, s := range h.journal.All() {
		if input.Stage != "" && (s.NextStage == nil || s.NextStage.String() != input.Stage) {
			continue
		}
		if input.Status != "" && string(s.Status) != input.Status {
			continue
		}
		if input.Speaker != "" && s.Speaker != input.Speaker {
			continue
		}
		resp.Body.Items = append(resp.Body.Items, ItemSummaryFromState(s))
	}

	return resp, nil
}

// GetByID returns one journal record.
func (h *ItemsHandler) GetByID(ctx context.Context, input *GetItemInput) (*GetItemOutput, error) {
	state, err := h.journal.Get(input.ID)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("item %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get item", err)
	}

	return &GetItemOutput{Body: ItemDetailFromState(state)}, nil
}
