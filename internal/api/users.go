package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/djpki/ejbca-rest-gateway/internal/ejbca"
)

type userRequest struct {
	Username               string `json:"username"`
	Password               string `json:"password"`
	SubjectDN              string `json:"subject_dn"`
	CAName                 string `json:"ca_name,omitempty"`
	SubjectAltName         string `json:"subject_alt_name,omitempty"`
	Email                  string `json:"email,omitempty"`
	TokenType              string `json:"token_type,omitempty"`
	EndEntityProfileName   string `json:"end_entity_profile_name,omitempty"`
	CertificateProfileName string `json:"certificate_profile_name,omitempty"`
}

func (u userRequest) toUserData() ejbca.UserData {
	return ejbca.UserData{
		Username:               u.Username,
		Password:               u.Password,
		SubjectDN:              u.SubjectDN,
		CAName:                 u.CAName,
		SubjectAltName:         u.SubjectAltName,
		Email:                  u.Email,
		TokenType:              u.TokenType,
		EndEntityProfileName:   u.EndEntityProfileName,
		CertificateProfileName: u.CertificateProfileName,
	}
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		errorFrom(err).Write(w)
		return
	}
	if req.Username == "" || req.SubjectDN == "" {
		errInvalidRequest("username and subject_dn are required").Write(w)
		return
	}

	err := s.client.EditUser(r.Context(), req.toUserData())
	s.recordDispatch(r, "editUser", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"username": req.Username,
		"message":  "end entity created",
	})
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	users, err := s.client.FindUser(r.Context(), username)
	s.recordDispatch(r, "findUser", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	if len(users) == 0 {
		errNotFound("user %q not found", username).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, users[0])
}

func (s *Server) searchUsers(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	if value == "" {
		errInvalidRequest("query parameter value is required").Write(w)
		return
	}

	matchWith, err := queryInt(r, "match_with", ejbca.MatchWithUsername)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}
	matchType, err := queryInt(r, "match_type", ejbca.MatchTypeEquals)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	users, err := s.client.FindUsers(r.Context(), ejbca.UserMatch{
		MatchWith:  matchWith,
		MatchType:  matchType,
		MatchValue: value,
	})
	s.recordDispatch(r, "findUser", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(users),
		"users": users,
	})
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeBody(r, &req); err != nil {
		errorFrom(err).Write(w)
		return
	}
	req.Username = chi.URLParam(r, "username")
	if req.SubjectDN == "" {
		errInvalidRequest("subject_dn is required").Write(w)
		return
	}

	err := s.client.EditUser(r.Context(), req.toUserData())
	s.recordDispatch(r, "editUser", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"username": req.Username,
		"message":  "end entity updated",
	})
}

type revokeUserRequest struct {
	Reason int  `json:"reason"`
	Delete bool `json:"delete,omitempty"`
}

func (s *Server) revokeUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req revokeUserRequest
	if err := decodeBody(r, &req); err != nil {
		errorFrom(err).Write(w)
		return
	}

	err := s.client.RevokeUser(r.Context(), username, req.Reason, req.Delete)
	s.recordDispatch(r, "revokeUser", err)
	if err != nil {
		errorFrom(err).Write(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"username": username,
		"reason":   req.Reason,
		"deleted":  req.Delete,
	})
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errInvalidRequest("query parameter %s must be an integer", name)
	}
	return value, nil
}

func queryBool(r *http.Request, name string, fallback bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errInvalidRequest("query parameter %s must be a boolean", name)
	}
	return value, nil
}
