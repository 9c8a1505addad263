package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxBodyBytes caps JSON request bodies
const MaxBodyBytes = 1 << 20

// DecodeJSON reads a JSON request body into dst and validates it. The
// returned error is always ValidationErrors so handlers can answer 400
// without inspecting it further.
func DecodeJSON(r *http.Request, dst interface{}) error {
	return decodeJSON(r, dst, true)
}

// DecodeJSONLenient is DecodeJSON for public payloads that may carry
// fields dst does not declare. Unknown fields are ignored.
func DecodeJSONLenient(r *http.Request, dst interface{}) error {
	return decodeJSON(r, dst, false)
}

func decodeJSON(r *http.Request, dst interface{}, strict bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		msg := fmt.Sprintf("invalid JSON: %v", err)
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		return ValidationErrors{{Field: "request_body", Message: msg}}
	}
	if err := Struct(dst); err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			return verrs
		}
		return ValidationErrors{{Field: "request_body", Message: err.Error()}}
	}
	return nil
}

// WriteErrors writes validation errors as a JSON response
func WriteErrors(w http.ResponseWriter, statusCode int, errs ValidationErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	body := struct {
		Error  string            `json:"error"`
		Errors []ValidationError `json:"errors"`
		Count  int               `json:"count"`
	}{
		Error:  errs.Error(),
		Errors: errs,
		Count:  len(errs),
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		w.Write([]byte(`{"error":"validation failed"}`))
	}
}

// JSON returns middleware rejecting requests whose Content-Type is not JSON
func JSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 && !isJSON(r.Header.Get("Content-Type")) {
			WriteErrors(w, http.StatusUnsupportedMediaType, ValidationErrors{{
				Field:   "Content-Type",
				Value:   r.Header.Get("Content-Type"),
				Message: "must be application/json",
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isJSON(ct string) bool {
	return len(ct) >= 16 && ct[:16] == "application/json"
}
