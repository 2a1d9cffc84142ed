package handler

import (
	"strconv"
	"time"

	"github.com/qtu11/SipMart-sub003/internal/adapter/http/dto"
	"github.com/qtu11/SipMart-sub003/internal/core/domain"
	"github.com/qtu11/SipMart-sub003/internal/core/ports"
	"github.com/qtu11/SipMart-sub003/pkg/apperror"
	"github.com/qtu11/SipMart-sub003/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DeviceHandler receives events from unit hardware on the IoT webhook.
type DeviceHandler struct {
	incidentRepo ports.IncidentRepository
	assetRepo    ports.AssetRepository
	log          zerolog.Logger
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(incidentRepo ports.IncidentRepository, assetRepo ports.AssetRepository, log zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{
		incidentRepo: incidentRepo,
		assetRepo:    assetRepo,
		log:          log,
	}
}

// HandleEvent handles POST /api/v1/devices/events. Events are recorded as
// incidents; unknown device labels are accepted so telemetry is never lost
// to a fleet inventory gap.
func (h *DeviceHandler) HandleEvent(c *gin.Context) {
	var req dto.DeviceEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	var assetID *uuid.UUID
	asset, err := h.assetRepo.GetByLabel(c.Request.Context(), req.DeviceLabel)
	if err != nil {
		h.log.Warn().Err(err).Str("device", req.DeviceLabel).Msg("asset lookup failed for device event")
	} else if asset != nil {
		assetID = &asset.ID
	}

	incident := &domain.Incident{
		ID:          uuid.New(),
		DeviceLabel: req.DeviceLabel,
		AssetID:     assetID,
		Type:        domain.IncidentType(req.Type),
		Payload:     req.Payload,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.incidentRepo.Create(c.Request.Context(), incident); err != nil {
		response.Error(c, apperror.ErrStoreUnavailable(err))
		return
	}

	response.Created(c, gin.H{"incident_id": incident.ID.String()})
}

// ListIncidents handles GET /api/v1/devices/incidents (staff only).
func (h *DeviceHandler) ListIncidents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	incidents, err := h.incidentRepo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, apperror.ErrStoreUnavailable(err))
		return
	}

	response.OK(c, incidents)
}
