package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/framegrab/internal/api/models"
	"github.com/smazurov/framegrab/internal/convert"
	"github.com/smazurov/framegrab/internal/pixel"
)

// registerPipelineRoutes sets up status, format, and backend endpoints.
func (s *Server) registerPipelineRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Status",
		Description: "Get pipeline statistics: frame counters, queue depth, and active backend",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.StatusResponse, error) {
		return &models.StatusResponse{Body: s.pipe.Stats()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-formats",
		Method:      http.MethodGet,
		Path:        "/api/formats",
		Summary:     "Formats",
		Description: "List supported pixel formats and registered conversion backends",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.FormatsResponse, error) {
		formats := make([]models.FormatInfo, 0, len(pixel.Formats))
		for _, f := range pixel.Formats {
			model := "rgb"
			if f.IsYUV() {
				model = "yuv"
			}
			formats = append(formats, models.FormatInfo{
				Name:          f.String(),
				ColorModel:    model,
				Planes:        f.PlaneCount(),
				BytesPerPixel: f.BytesPerPixel(),
			})
		}
		return &models.FormatsResponse{
			Body: models.FormatsData{
				Formats:  formats,
				Backends: convert.Backends(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-backend",
		Method:      http.MethodGet,
		Path:        "/api/backend",
		Summary:     "Backend",
		Description: "Get the active conversion backend and selection policy",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.BackendResponse, error) {
		engine := s.pipe.Engine()
		return &models.BackendResponse{
			Body: models.BackendData{
				Backend:  engine.BackendName(),
				Policy:   engine.Policy().String(),
				Backends: convert.Backends(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-backend",
		Method:      http.MethodPut,
		Path:        "/api/backend",
		Summary:     "Set Backend",
		Description: "Change the conversion backend selection policy at runtime",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{400, 401},
	}, func(ctx context.Context, input *models.BackendUpdateInput) (*models.BackendResponse, error) {
		policy, err := convert.ParsePolicy(input.Body.Policy)
		if err != nil {
			return nil, huma.Error400BadRequest("unknown backend policy", err)
		}
		s.pipe.SetBackendPolicy(policy)

		engine := s.pipe.Engine()
		s.logger.Info("Backend policy changed", "policy", policy.String(), "backend", engine.BackendName())
		return &models.BackendResponse{
			Body: models.BackendData{
				Backend:  engine.BackendName(),
				Policy:   engine.Policy().String(),
				Backends: convert.Backends(),
			},
		}, nil
	})
}
