package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/qtu11/SipMart-sub003/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StationLocationVerifier implements ports.LocationVerifier. The geofencing
// backend is not wired yet; every return location passes.
// TODO: call the station controller's presence endpoint once the fleet
// firmware exposes it.
type StationLocationVerifier struct {
	log zerolog.Logger
}

// NewStationLocationVerifier creates the pass-through location verifier.
func NewStationLocationVerifier(log zerolog.Logger) *StationLocationVerifier {
	return &StationLocationVerifier{log: log}
}

// AtStation reports whether the asset is physically at the station.
func (v *StationLocationVerifier) AtStation(_ context.Context, assetID, stationID uuid.UUID) (bool, error) {
	v.log.Debug().
		Str("asset_id", assetID.String()).
		Str("station_id", stationID.String()).
		Msg("location check passed (stub)")
	return true, nil
}

// deviceCommand is the JSON body sent to the lock relay.
type deviceCommand struct {
	Label   string `json:"label"`
	Command string `json:"command"` // "lock" or "unlock"
}

// HTTPDeviceSignaler implements ports.DeviceSignaler against the lock relay
// service. Callers invoke it after commit; a failed signal never rolls back
// a settlement.
type HTTPDeviceSignaler struct {
	cfg        config.DevicesConfig
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewHTTPDeviceSignaler creates a signaler bound to the configured relay.
func NewHTTPDeviceSignaler(cfg config.DevicesConfig, httpClient HTTPClient, log zerolog.Logger) *HTTPDeviceSignaler {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPDeviceSignaler{cfg: cfg, httpClient: httpClient, log: log}
}

// Unlock sends the unlock command for the labeled unit.
func (s *HTTPDeviceSignaler) Unlock(ctx context.Context, assetLabel string) error {
	return s.send(ctx, assetLabel, "unlock")
}

// Lock sends the lock command for the labeled unit.
func (s *HTTPDeviceSignaler) Lock(ctx context.Context, assetLabel string) error {
	return s.send(ctx, assetLabel, "lock")
}

func (s *HTTPDeviceSignaler) send(ctx context.Context, label, command string) error {
	if s.cfg.SignalURL == "" {
		s.log.Debug().Str("label", label).Str("command", command).Msg("no signal relay configured, skipping")
		return nil
	}

	body, err := json.Marshal(deviceCommand{Label: label, Command: command})
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.SignalURL+"/commands", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("relay returned status %d", resp.StatusCode)
	}

	s.log.Debug().Str("label", label).Str("command", command).Msg("device command delivered")
	return nil
}

// LogNotifier implements ports.Notifier by logging the notification. The
// push-delivery channel is outside this service.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates the logging notifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify records the user-facing notification.
func (n *LogNotifier) Notify(_ context.Context, userID uuid.UUID, title, body string) error {
	n.log.Info().
		Str("user_id", userID.String()).
		Str("title", title).
		Str("body", body).
		Msg("user notification")
	return nil
}
