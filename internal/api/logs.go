package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/framegrab/internal/api/models"
	"github.com/smazurov/framegrab/internal/logging"
)

// registerLogRoutes sets up the log history endpoint backed by the ring
// buffer.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Logs",
		Description: "Get recent log entries from the in-memory ring buffer",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct {
		Count int `query:"count" default:"100" minimum:"1" maximum:"1000" doc:"Maximum number of entries"`
	}) (*models.LogsResponse, error) {
		buffer := logging.GetBuffer()
		if buffer == nil {
			return &models.LogsResponse{Body: models.LogsData{Entries: []logging.LogEntry{}}}, nil
		}
		return &models.LogsResponse{
			Body: models.LogsData{Entries: buffer.GetRecent(input.Count)},
		}, nil
	})
}
