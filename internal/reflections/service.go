package reflections

import (
	"context"
	"fmt"
	"net/http"

	"github.com/reflecta/reflecta/internal/api"
	"github.com/reflecta/reflecta/internal/logging"
	"github.com/reflecta/reflecta/internal/models"
)

// Requester issues calls against the reflection service.
type Requester interface {
	Do(ctx context.Context, req api.Request, out any) error
}

// Service wraps the reflection endpoints. Aggregates are computed by the
// backend and returned untouched.
type Service struct {
	client Requester
}

// NewService constructs a reflections Service.
func NewService(client Requester) *Service {
	if client == nil {
		panic("reflections: client must not be nil")
	}
	return &Service{client: client}
}

type createRequest struct {
	Mood int    `json:"mood"`
	Note string `json:"note"`
}

// Validate checks a reflection locally. It never touches the network.
func Validate(mood int, note string) error {
	if !models.ValidMood(mood) {
		return api.ValidationError(fmt.Sprintf("Mood must be between %d and %d.", models.MinMood, models.MaxMood))
	}
	if !models.ValidNote(note) {
		return api.ValidationError(fmt.Sprintf("Notes are limited to %d characters.", models.MaxNoteLength))
	}
	return nil
}

// Create validates and submits a new reflection.
func (s *Service) Create(ctx context.Context, mood int, note string) (models.Reflection, error) {
	if err := Validate(mood, note); err != nil {
		return models.Reflection{}, err
	}

	ctx, span := logging.StartSpan(ctx, "reflections.create")
	defer span.End()

	var created models.Reflection
	err := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/reflections",
		Body:   createRequest{Mood: mood, Note: note},
	}, &created)
	if err != nil {
		return models.Reflection{}, span.Fail(err)
	}
	return created, nil
}

// WeeklySummary fetches the server-computed summary of the trailing week.
func (s *Service) WeeklySummary(ctx context.Context) (models.WeeklySummary, error) {
	ctx, span := logging.StartSpan(ctx, "reflections.weekly")
	defer span.End()

	var summary models.WeeklySummary
	if err := s.client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/reflections/weekly"}, &summary); err != nil {
		return models.WeeklySummary{}, span.Fail(err)
	}
	return summary, nil
}

// Insights fetches the server-computed insights view.
func (s *Service) Insights(ctx context.Context) (models.Insights, error) {
	ctx, span := logging.StartSpan(ctx, "reflections.insights")
	defer span.End()

	var insights models.Insights
	if err := s.client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/reflections/insights"}, &insights); err != nil {
		return models.Insights{}, span.Fail(err)
	}
	return insights, nil
}
