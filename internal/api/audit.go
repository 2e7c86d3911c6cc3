package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/phaselink-core/internal/audit"
)

// auditTimeout bounds one audit write. It runs detached from the request
// so a client hanging up does not lose the entry.
const auditTimeout = 2 * time.Second

// recordAudit writes an entry to the audit trail. Failures are logged only.
func (s *Server) recordAudit(entry *audit.Entry) {
	if s.audit == nil {
		return
	}
	entry.Source = audit.SourceAPI

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", "action", entry.Action, "device_id", entry.DeviceID, "error", err)
	}
}

// handleListAudit returns the audit trail of the caller's device, newest
// first. Query parameters: action, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "audit trail is not configured")
		return
	}
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "missing bearer token")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   q.Get("action"),
		DeviceID: claims.DeviceID,
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, p.name+" must be an integer")
			return
		}
		*p.dst = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit trail failed", "device_id", claims.DeviceID, "error", err)
		writeInternalError(w, "listing audit trail failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
