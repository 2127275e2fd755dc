package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/djpki/ejbca-rest-gateway/internal/ejbca"
)

func (s *Server) listOperations(w http.ResponseWriter, r *http.Request) {
	names := s.client.Operations()

	if search := strings.ToLower(r.URL.Query().Get("search")); search != "" {
		filtered := names[:0]
		for _, name := range names {
			if strings.Contains(strings.ToLower(name), search) {
				filtered = append(filtered, name)
			}
		}
		names = filtered
	}

	status := s.client.Status()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(names),
		"operations": names,
		"degraded":   status.Degraded,
	})
}

type executeRequest struct {
	Operation    string            `json:"operation"`
	Params       map[string]string `json:"params,omitempty"`
	ValidateOnly bool              `json:"validate_only,omitempty"`
}

func (req executeRequest) soapParams() ejbca.Params {
	params := ejbca.Params{}
	for key, value := range req.Params {
		params[key] = value
	}
	return params
}

func (s *Server) executeOperation(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeBody(r, &req); err != nil {
		errorFrom(err).Write(w)
		return
	}
	if req.Operation == "" {
		errInvalidRequest("operation is required").Write(w)
		return
	}

	if req.ValidateOnly {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"operation": req.Operation,
			"known":     ejbca.IsKnownOperation(req.Operation),
			"available": s.client.HasOperation(req.Operation),
			"validated": true,
		})
		return
	}

	result, err := s.client.CallOperation(r.Context(), req.Operation, req.soapParams())
	s.recordDispatch(r, req.Operation, err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"operation": req.Operation,
		"response":  string(result.Body),
	})
}

type batchRequest struct {
	Operations  []executeRequest `json:"operations"`
	StopOnError bool             `json:"stop_on_error,omitempty"`
}

type batchResult struct {
	Operation string `json:"operation"`
	Success   bool   `json:"success"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) batchOperations(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(r, &req); err != nil {
		errorFrom(err).Write(w)
		return
	}
	if len(req.Operations) == 0 {
		errInvalidRequest("operations must not be empty").Write(w)
		return
	}

	results := make([]batchResult, 0, len(req.Operations))
	failed := 0
	for _, entry := range req.Operations {
		result, err := s.client.CallOperation(r.Context(), entry.Operation, entry.soapParams())
		s.recordDispatch(r, entry.Operation, err)

		item := batchResult{Operation: entry.Operation, Success: err == nil}
		if err != nil {
			failed++
			item.Error = errorFrom(err).desc
		} else {
			item.Response = string(result.Body)
		}
		results = append(results, item)

		if err != nil && req.StopOnError {
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   len(req.Operations),
		"failed":  failed,
		"results": results,
	})
}

type rawCallRequest struct {
	Params map[string]string `json:"params,omitempty"`
}

// rawSOAPCall is the generic escape hatch: any operation from the known
// endpoint list, dispatched with a flat parameter mapping. Names outside
// the list are rejected up front.
func (s *Server) rawSOAPCall(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")
	if !ejbca.IsKnownOperation(operation) {
		errNotFound("unknown SOAP endpoint %q", operation).Write(w)
		return
	}

	var req rawCallRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			errorFrom(err).Write(w)
			return
		}
	}

	params := ejbca.Params{}
	for key, value := range req.Params {
		params[key] = value
	}

	result, err := s.client.CallOperation(r.Context(), operation, params)
	s.recordDispatch(r, operation, err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"operation": operation,
		"response":  string(result.Body),
	})
}
