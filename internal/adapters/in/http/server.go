package http

import (
	"errors"
	"net/http"
	"time"

	"tracking/internal/core/application/usecases/commands"
	"tracking/internal/core/application/usecases/queries"
	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/ports"
	"tracking/internal/pkg/errs"

	"github.com/labstack/echo/v4"
)

// Server exposes the tracking operations over HTTP.
// It coordinates between HTTP handlers and application use cases.
type Server struct {
	// Command handlers
	trackShipmentHandler commands.TrackShipmentCommandHandler
	trackBatchHandler    commands.TrackBatchCommandHandler

	// Query handlers
	getShipmentTrackingHandler queries.GetShipmentTrackingQueryHandler

	batchSize   int
	concurrency int
}

// NewServer creates a new HTTP server with the required command and query handlers.
func NewServer(
	trackShipmentHandler commands.TrackShipmentCommandHandler,
	trackBatchHandler commands.TrackBatchCommandHandler,
	getShipmentTrackingHandler queries.GetShipmentTrackingQueryHandler,
	batchSize int,
	concurrency int,
) *Server {
	return &Server{
		trackShipmentHandler:       trackShipmentHandler,
		trackBatchHandler:          trackBatchHandler,
		getShipmentTrackingHandler: getShipmentTrackingHandler,
		batchSize:                  batchSize,
		concurrency:                concurrency,
	}
}

// RegisterRoutes wires the server's handlers into an echo instance.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", s.Health)
	e.POST("/api/v1/tracking/sweep", s.TriggerSweep)
	e.POST("/api/v1/shipments/:id/track", s.TrackShipment)
	e.GET("/api/v1/shipments/:id/tracking", s.GetShipmentTracking)
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Health handles GET /health - liveness probe.
func (s *Server) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// TriggerSweep handles POST /api/v1/tracking/sweep - runs one tracking sweep
// over due shipments and reports the outcome. The same operation the cron
// schedule runs, exposed for operators.
func (s *Server) TriggerSweep(ctx echo.Context) error {
	cmd, err := commands.NewTrackBatchCommand(s.batchSize, s.concurrency)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, errorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Invalid sweep configuration: " + err.Error(),
		})
	}

	result, err := s.trackBatchHandler.Handle(ctx.Request().Context(), cmd)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, errorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Sweep failed: " + err.Error(),
		})
	}

	return ctx.JSON(http.StatusOK, toSweepResponse(result))
}

// TrackShipment handles POST /api/v1/shipments/:id/track - reconciles one
// shipment synchronously, bypassing the recently-checked window.
func (s *Server) TrackShipment(ctx echo.Context) error {
	id, err := kernel.UUIDFromString(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid shipment id",
		})
	}

	cmd, err := commands.NewTrackShipmentCommand(id, true)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid track request: " + err.Error(),
		})
	}

	result, err := s.trackShipmentHandler.Handle(ctx.Request().Context(), cmd)
	if err != nil {
		status := trackErrorStatus(err)
		return ctx.JSON(status, errorResponse{
			Code:    status,
			Message: err.Error(),
		})
	}

	return ctx.JSON(http.StatusOK, toTrackResponse(result))
}

// GetShipmentTracking handles GET /api/v1/shipments/:id/tracking - returns
// the shipment's tracking view with its scan history.
func (s *Server) GetShipmentTracking(ctx echo.Context) error {
	id, err := kernel.UUIDFromString(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid shipment id",
		})
	}

	query, err := queries.NewGetShipmentTrackingQuery(id)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid tracking query: " + err.Error(),
		})
	}

	view, err := s.getShipmentTrackingHandler.Handle(ctx.Request().Context(), query)
	if err != nil {
		if errors.Is(err, errs.ErrObjectNotFound) {
			return ctx.JSON(http.StatusNotFound, errorResponse{
				Code:    http.StatusNotFound,
				Message: "Shipment not found",
			})
		}
		return ctx.JSON(http.StatusInternalServerError, errorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to retrieve tracking view",
		})
	}

	return ctx.JSON(http.StatusOK, toTrackingViewResponse(view))
}

// trackErrorStatus maps reconciliation failures onto HTTP statuses.
func trackErrorStatus(err error) int {
	switch {
	case errors.Is(err, errs.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrInsufficientData),
		errors.Is(err, ports.ErrMissingVendorConfig):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ports.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// sweepResponse summarizes one sweep run.
type sweepResponse struct {
	Selected  int             `json:"selected"`
	Processed int             `json:"processed"`
	Updated   int             `json:"updated"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	Errors    []shipmentError `json:"errors,omitempty"`
}

type shipmentError struct {
	ShipmentID string `json:"shipment_id"`
	Error      string `json:"error"`
}

func toSweepResponse(result commands.TrackBatchResult) sweepResponse {
	resp := sweepResponse{
		Selected:  result.Selected,
		Processed: result.Processed,
		Updated:   result.Updated,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
	}
	for _, e := range result.Errors {
		resp.Errors = append(resp.Errors, shipmentError{
			ShipmentID: e.ShipmentID.String(),
			Error:      e.Message,
		})
	}
	return resp
}

// trackResponse reports one synchronous reconciliation.
type trackResponse struct {
	ShipmentID     string `json:"shipment_id"`
	Skipped        bool   `json:"skipped"`
	Changed        bool   `json:"changed"`
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
	Bucket         int    `json:"bucket"`
	NewEvents      int    `json:"new_events"`
	Message        string `json:"message,omitempty"`
}

func toTrackResponse(result commands.TrackShipmentResult) trackResponse {
	return trackResponse{
		ShipmentID:     result.ShipmentID.String(),
		Skipped:        result.Skipped,
		Changed:        result.Changed,
		PreviousStatus: result.PreviousStatus.String(),
		NewStatus:      result.NewStatus.String(),
		Bucket:         int(result.Bucket),
		NewEvents:      result.NewEvents,
		Message:        result.Message,
	}
}

// trackingViewResponse is the shipment tracking view.
type trackingViewResponse struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	AWB            *string         `json:"awb"`
	CarrierCode    string          `json:"carrier_code"`
	Status         string          `json:"status"`
	Bucket         int             `json:"bucket"`
	NDRReason      *string         `json:"ndr_reason,omitempty"`
	PickedUpAt     *time.Time      `json:"picked_up_at,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	RTODeliveredAt *time.Time      `json:"rto_delivered_at,omitempty"`
	Events         []eventResponse `json:"events"`
}

type eventResponse struct {
	StatusCode  string    `json:"status_code"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func toTrackingViewResponse(view queries.GetShipmentTrackingQueryResponse) trackingViewResponse {
	resp := trackingViewResponse{
		ID:             view.ID.String(),
		OrderID:        view.OrderID.String(),
		AWB:            view.AWB,
		CarrierCode:    view.CarrierCode,
		Status:         view.Status.String(),
		Bucket:         int(view.Bucket),
		NDRReason:      view.NDRReason,
		PickedUpAt:     view.PickedUpAt,
		DeliveredAt:    view.DeliveredAt,
		RTODeliveredAt: view.RTODeliveredAt,
		Events:         make([]eventResponse, 0, len(view.Events)),
	}
	for _, event := range view.Events {
		resp.Events = append(resp.Events, eventResponse{
			StatusCode:  event.StatusCode,
			Description: event.Description,
			Location:    event.Location,
			Timestamp:   event.Timestamp,
		})
	}
	return resp
}
