package api

import (
	"net/http"
	"strconv"

	"github.com/djpki/ejbca-rest-gateway/internal/ejbca"
)

func containsName(entries []ejbca.NameAndID, name string) bool {
	_, ok := nameID(entries, name)
	return ok
}

func nameID(entries []ejbca.NameAndID, name string) (int64, bool) {
	for _, entry := range entries {
		if entry.Name == name {
			return entry.ID, true
		}
	}
	return 0, false
}

func (s *Server) endEntityProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.client.GetAuthorizedEndEntityProfiles(r.Context())
	s.recordDispatch(r, "getAuthorizedEndEntityProfiles", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(profiles),
		"profiles": profiles,
	})
}

func (s *Server) certificateProfiles(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("end_entity_profile_id")
	if raw == "" {
		errInvalidRequest("query parameter end_entity_profile_id is required").Write(w)
		return
	}
	profileID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		errInvalidRequest("query parameter end_entity_profile_id must be an integer").Write(w)
		return
	}

	profiles, err := s.client.GetAvailableCertificateProfiles(r.Context(), profileID)
	s.recordDispatch(r, "getAvailableCertificateProfiles", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"end_entity_profile_id": profileID,
		"count":                 len(profiles),
		"profiles":              profiles,
	})
}

// validateProfiles checks the existence of a CA, an end-entity profile and
// a certificate profile in one round of listing calls, so a caller can
// verify an enrollment triple before creating end entities.
func (s *Server) validateProfiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	caName := query.Get("ca")
	eeProfile := query.Get("end_entity_profile")
	if caName == "" && eeProfile == "" {
		errInvalidRequest("at least one of ca or end_entity_profile is required").Write(w)
		return
	}

	result := map[string]interface{}{}

	if caName != "" {
		cas, err := s.client.GetAvailableCAs(r.Context())
		s.recordDispatch(r, "getAvailableCAs", err)
		if err != nil {
			errorFrom(err).Write(w)
			return
		}
		result["ca"] = map[string]interface{}{
			"name":   caName,
			"exists": containsName(cas, caName),
		}
	}

	if eeProfile != "" {
		profiles, err := s.client.GetAuthorizedEndEntityProfiles(r.Context())
		s.recordDispatch(r, "getAuthorizedEndEntityProfiles", err)
		if err != nil {
			errorFrom(err).Write(w)
			return
		}
		entry := map[string]interface{}{
			"name":   eeProfile,
			"exists": containsName(profiles, eeProfile),
		}

		// The certificate profile check needs the end-entity profile ID.
		if certProfile := query.Get("certificate_profile"); certProfile != "" {
			if id, ok := nameID(profiles, eeProfile); ok {
				certProfiles, err := s.client.GetAvailableCertificateProfiles(r.Context(), id)
				s.recordDispatch(r, "getAvailableCertificateProfiles", err)
				if err != nil {
					errorFrom(err).Write(w)
					return
				}
				result["certificate_profile"] = map[string]interface{}{
					"name":   certProfile,
					"exists": containsName(certProfiles, certProfile),
				}
			} else {
				result["certificate_profile"] = map[string]interface{}{
					"name":   certProfile,
					"exists": false,
				}
			}
		}
		result["end_entity_profile"] = entry
	}

	writeJSON(w, http.StatusOK, result)
}
