package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/xraph/parkledger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	switch parkledger.Code(err) {
	case "NotFound":
		return http.StatusNotFound
	case "AlreadyExists", "AlreadyParked", "NotCurrentlyParked", "Conflict":
		return http.StatusConflict
	case "EmptyName", "EmptyPlate",
		"InvalidDepositAmount", "InvalidWithdrawAmount", "InvalidRecipient",
		"MalformedInstruction", "UnknownInstruction", "MissingSigner", "AccountMismatch":
		return http.StatusBadRequest
	case "InsufficientVaultBalance", "InsufficientFunds",
		"ArithmeticOverflow", "InvalidParkingDuration":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v, rejecting unknown fields and trailing data.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidBody", err.Error())
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "InvalidBody", "body must contain a single JSON object")
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) //nolint:errcheck // headers already sent
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}
