package api

import (
	"encoding/json"
	"net/http"
)

const (
	contentTypeHeader        = "Content-Type"
	contentTypeOptionsHeader = "X-Content-Type-Options"

	mimeTypeJSON   = "application/json"
	mimeTypePEM    = "application/x-pem-file"
	mimeTypeDER    = "application/pkix-cert"
	mimeTypeCRL    = "application/pkix-crl"
	mimeTypePKCS12 = "application/x-pkcs12"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set(contentTypeHeader, mimeTypeJSON)
	w.Header().Set(contentTypeOptionsHeader, "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBytes(w http.ResponseWriter, mimeType, filename string, data []byte) {
	w.Header().Set(contentTypeHeader, mimeType)
	w.Header().Set(contentTypeOptionsHeader, "nosniff")
	if filename != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// decodeBody parses a JSON request body, rejecting unknown fields.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errInvalidRequest("invalid request body: %s", err)
	}
	return nil
}
