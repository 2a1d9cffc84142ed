package domain

import (
	"time"

	"github.com/google/uuid"
)

// IncidentType classifies device-originated events.
type IncidentType string

const (
	IncidentGeofenceBreach IncidentType = "geofence_breach"
	IncidentLowBattery     IncidentType = "low_battery"
	IncidentTamper         IncidentType = "tamper"
)

// Incident records a device-originated event received on the IoT webhook.
// Incidents never touch the wallet ledger and sit outside the settlement
// core's consistency guarantees.
type Incident struct {
	ID          uuid.UUID    `json:"id"`
	DeviceLabel string       `json:"device_label"`
	AssetID     *uuid.UUID   `json:"asset_id,omitempty"`
	Type        IncidentType `json:"type"`
	Payload     string       `json:"payload"` // raw event JSON as received
	CreatedAt   time.Time    `json:"created_at"`
}
