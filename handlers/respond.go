package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/scheduler/database"
	"github.com/CrowderSoup/scheduler/validation"
)

const maxBodyBytes = 1 << 20

// badRequest marks errors caused by a malformed request rather than by
// invalid field values.
type badRequest struct {
	msg string
}

func (e badRequest) Error() string {
	return e.msg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError maps err onto a status code and a JSON body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		fieldErrs validation.FieldErrors
		badReq    badRequest
		histErr   *database.HistoryError
	)
	entry := requestLogger(r).WithError(err)

	switch {
	case errors.As(err, &fieldErrs):
		entry.Warn("validation failed")
		writeJSON(w, http.StatusBadRequest, fieldErrs)
	case errors.As(err, &badReq):
		entry.Warn("bad request")
		writeDetail(w, http.StatusBadRequest, badReq.msg)
	case errors.Is(err, database.ErrInvalidReason):
		entry.Warn("invalid reason")
		writeJSON(w, http.StatusBadRequest, validation.FieldErrors{
			"reason": {"Must be one of \"completed\" or \"deleted\"."},
		})
	case errors.Is(err, database.ErrNotFound):
		entry.Warn("not found")
		writeDetail(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, database.ErrInvalidCredentials):
		entry.Warn("login failed")
		writeDetail(w, http.StatusUnauthorized, "Invalid user id or password.")
	case errors.As(err, &histErr):
		entry.Error("history record rejected")
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
	default:
		entry.Error("request failed")
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
	}
}

// readBody reads the request body, capped at maxBodyBytes.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, badRequest{msg: fmt.Sprintf("Failed to read request body: %v", err)}
	}
	if len(body) > maxBodyBytes {
		return nil, badRequest{msg: "Request body too large."}
	}
	return body, nil
}

// decodeInto unmarshals body onto v. Fields missing from body keep their
// current value in v.
func decodeInto(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return badRequest{msg: fmt.Sprintf("JSON parse error - %v", err)}
	}
	return nil
}

func decodeJSON(r *http.Request, v any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	return decodeInto(body, v)
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, database.ErrNotFound
	}
	return id, nil
}

// requireQuery returns the named query parameters. A missing parameter is
// reported as a field error, or with ok=false when lenient is set.
func requireQuery(r *http.Request, lenient bool, names ...string) (map[string]string, bool, error) {
	query := r.URL.Query()
	values := make(map[string]string, len(names))
	errs := validation.FieldErrors{}
	for _, name := range names {
		if !query.Has(name) {
			errs.Add(name, "This field is required.")
			continue
		}
		values[name] = query.Get(name)
	}
	if len(errs) == 0 {
		return values, true, nil
	}
	if lenient {
		return nil, false, nil
	}
	return nil, false, errs
}
