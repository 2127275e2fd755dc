package api

import (
	"net/http"
	"runtime"
	"time"
)

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "ejbca-rest-gateway",
		"version": s.info.Version,
		"health":  "/health",
	})
}

// health reports a degraded status instead of failing when the remote CA
// is unreachable: the gateway itself is still serving.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := s.client.Status()

	state := "ok"
	if !status.Initialized {
		state = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": state,
		"soap":   status,
	})
}

func (s *Server) soapStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.client.Status())
}

func (s *Server) systemInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":    "ejbca-rest-gateway",
		"version":    s.info.Version,
		"go_version": runtime.Version(),
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"soap":       s.client.Status(),
	})
}

// systemConfig reports the effective configuration. Secrets are never
// included.
func (s *Server) systemConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service_url":     s.info.ServiceURL,
		"bundle_path":     s.info.BundlePath,
		"bundle_password": "********",
		"db_type":         s.info.DBType,
		"rate_limit":      s.rateLimit,
		"audit_enabled":   s.store != nil,
	})
}

// reconnect forces a fresh initialization attempt against the remote CA.
func (s *Server) reconnect(w http.ResponseWriter, r *http.Request) {
	ok := s.client.Initialize(r.Context())

	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"initialized": ok,
		"soap":        s.client.Status(),
	})
}

func (s *Server) auditRequests(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		errNotFound("audit store is not configured").Write(w)
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	records, err := s.store.RecentRequests(limit)
	if err != nil {
		s.logger.Errorw("failed to read request audit records", "error", err)
		(&apiError{status: http.StatusInternalServerError, desc: "audit query failed"}).Write(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(records),
		"requests": records,
	})
}

func (s *Server) auditDispatches(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		errNotFound("audit store is not configured").Write(w)
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	records, err := s.store.RecentDispatches(limit)
	if err != nil {
		s.logger.Errorw("failed to read dispatch audit records", "error", err)
		(&apiError{status: http.StatusInternalServerError, desc: "audit query failed"}).Write(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(records),
		"dispatches": records,
	})
}
