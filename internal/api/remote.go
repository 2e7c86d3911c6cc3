package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/nerrad567/phaselink-core/internal/audit"
	"github.com/nerrad567/phaselink-core/internal/link"
)

// headerDeviceConnected reports on status reads whether the device is online.
const headerDeviceConnected = "X-Device-Connected"

// remoteCommandRequest is the body of POST /remote-control.
type remoteCommandRequest struct {
	DeviceID string `json:"device_id"`
	Phase    string `json:"phase"`
	Command  string `json:"command"`
}

// remoteCommandResponse reports whether the command reached the device.
type remoteCommandResponse struct {
	Delivered bool   `json:"delivered"`
	Status    string `json:"status"`
}

// handleRemoteControl relays a phase command to a connected device.
// An offline device is reported in the body with HTTP 200, not as an error.
func (s *Server) handleRemoteControl(w http.ResponseWriter, r *http.Request) {
	var req remoteCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.relay.Send(strings.TrimSpace(req.DeviceID), req.Phase, req.Command)
	if err != nil {
		switch {
		case errors.Is(err, link.ErrInvalidDeviceID):
			writeBadRequest(w, "device_id is required")
		case errors.Is(err, link.ErrInvalidCommand):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("remote command failed", "device_id", req.DeviceID, "error", err)
			writeInternalError(w, "command failed")
		}
		return
	}

	resp := remoteCommandResponse{Delivered: result == link.Delivered, Status: "command sent"}
	if !resp.Delivered {
		resp.Status = "device not connected"
	}

	entry := &audit.Entry{
		Action:   audit.ActionCommand,
		DeviceID: strings.TrimSpace(req.DeviceID),
		Details:  map[string]any{"phase": req.Phase, "command": req.Command, "delivered": resp.Delivered},
	}
	if claims, ok := claimsFrom(r.Context()); ok {
		entry.Username = claims.Username
	}
	s.recordAudit(entry)
	writeJSON(w, http.StatusOK, resp)
}

// handleRemoteStatus returns the last-known phase status of a device.
//
// The body is the channel map, e.g. {"A":"on","B":null,"C":"off"}. A device
// that connected before but is offline now still gets its last snapshot,
// flagged by the X-Device-Connected header.
func (s *Server) handleRemoteStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimSpace(r.URL.Query().Get("device_id"))

	status, err := s.status.GetStatus(deviceID)
	if err != nil {
		switch {
		case errors.Is(err, link.ErrInvalidDeviceID):
			writeBadRequest(w, "device_id is required")
		case errors.Is(err, link.ErrDeviceUnknown):
			writeNotFound(w, "device not found")
		default:
			s.logger.Error("status read failed", "device_id", deviceID, "error", err)
			writeInternalError(w, "status read failed")
		}
		return
	}

	w.Header().Set(headerDeviceConnected, strconv.FormatBool(status.Connected))
	writeJSON(w, http.StatusOK, status.Snapshot)
}
