package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/ocrserve/internal/result"
)

const (
	uploadField   = "image_bytes"
	modeParam     = "ocr_type"
	pathParam     = "image_path"
	requestHeader = "X-Request-ID"
)

// ErrorResponse is returned for requests rejected before recognition
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleRoot handles GET /
func (d *Daemon) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Hello OCR!"})
}

// handleOnline handles POST /online/?ocr_type=MODE with the image in the
// multipart field image_bytes
func (d *Daemon) handleOnline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := d.requestID(w, r)
	log := d.logger.WithRequestID(requestID)
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, d.maxUploadBytes)
	data, err := readUpload(r)
	if err != nil {
		log.WithError(err).Warn("Rejected online request")
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	d.statusTracker.RequestStarted()
	env, err := d.recognizer.RecognizeUpload(r.Context(), r.FormValue(modeParam), data)
	if err != nil {
		d.statusTracker.RequestFailed(err, time.Since(start))
		log.WithError(err).Warn("Online request failed")
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	d.statusTracker.RequestCompleted(env, time.Since(start))

	log.WithFields("status", int(env.Status), "duration", time.Since(start)).Debug("Online request served")
	respondJSON(w, http.StatusOK, env)
}

// handleLocal handles POST /local/?ocr_type=MODE&image_path=PATH
func (d *Daemon) handleLocal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := d.requestID(w, r)
	log := d.logger.WithRequestID(requestID)
	start := time.Now()

	path := r.FormValue(pathParam)
	if path == "" {
		log.Warn("Rejected local request without image path")
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing image_path"})
		return
	}

	d.statusTracker.RequestStarted()
	env := d.recognizer.RecognizeLocal(r.Context(), r.FormValue(modeParam), path)
	d.statusTracker.RequestCompleted(env, time.Since(start))

	log.WithFields("status", int(env.Status), "duration", time.Since(start)).Debug("Local request served")
	respondJSON(w, http.StatusOK, env)
}

// requestID reuses the caller's X-Request-ID or assigns a new one
func (d *Daemon) requestID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(requestHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(requestHeader, id)
	return id
}

// readUpload returns the bytes of the image_bytes form file
func readUpload(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errors.New("missing image_bytes upload")
		}
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log error but can't change response at this point
		return
	}
}

// countEntries returns the number of images covered by an envelope
func countEntries(env *result.Envelope) int {
	if entries, ok := env.Result.([]result.Entry); ok {
		return len(entries)
	}
	if env.Type == result.TypeOnline && env.Status != result.StatusUnsupportedMode {
		return 1
	}
	return 0
}
