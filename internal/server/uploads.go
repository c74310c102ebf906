package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"campaignline/internal/engine"
)

// maxFieldBytes bounds a text part of the SNS form.
const maxFieldBytes = 8 << 10

// registerUploads mounts the file routes on chi directly. Huma decodes bodies into
// memory, which does not work for multi-gigabyte videos.
func registerUploads(r chi.Router, basePath string, e engine.Engine, logger *slog.Logger) {
	h := uploadHandler{engine: e, logger: logger}
	r.Put(path.Join(basePath, "applications/{id}/slots/{slot}/video"), h.putVideo)
	r.Post(path.Join(basePath, "applications/{id}/slots/{slot}/sns"), h.postSNS)
}

type uploadHandler struct {
	engine engine.Engine
	logger *slog.Logger
}

func (h uploadHandler) putVideo(w http.ResponseWriter, r *http.Request) {
	actor, authErr := actorFromContext(r.Context())
	if authErr != nil {
		respondStatusError(w, authErr)
		return
	}
	id := chi.URLParam(r, "id")
	slot, err := slotParam(r)
	if err != nil {
		respondStatusError(w, err)
		return
	}
	fileName := strings.TrimSpace(r.URL.Query().Get("file_name"))
	if fileName == "" {
		fileName = dispositionFileName(r.Header.Get("Content-Disposition"))
	}
	result, uploadErr := h.engine.UploadVideo(r.Context(), actor, id, slot, engine.Upload{
		FileName:    fileName,
		ContentType: r.Header.Get("Content-Type"),
		Size:        r.ContentLength,
		Body:        r.Body,
	})
	if uploadErr != nil {
		h.fail(w, r, uploadErr)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// postSNS reads the multipart form as a stream. Text fields must precede the
// clean_video part; the file is handed to the engine as soon as it starts.
func (h uploadHandler) postSNS(w http.ResponseWriter, r *http.Request) {
	actor, authErr := actorFromContext(r.Context())
	if authErr != nil {
		respondStatusError(w, authErr)
		return
	}
	id := chi.URLParam(r, "id")
	slot, err := slotParam(r)
	if err != nil {
		respondStatusError(w, err)
		return
	}
	mr, mpErr := r.MultipartReader()
	if mpErr != nil {
		respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "multipart/form-data body required", nil))
		return
	}
	var in engine.SNSSubmission
	for {
		part, partErr := mr.NextPart()
		if errors.Is(partErr, io.EOF) {
			break
		}
		if partErr != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "malformed multipart body", map[string]any{"error": partErr.Error()}))
			return
		}
		name := part.FormName()
		if name == "clean_video" && part.FileName() != "" {
			in.CleanVideo = &engine.Upload{
				FileName:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Size:        -1,
				Body:        part,
			}
			break
		}
		value, readErr := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
		part.Close()
		if readErr != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "malformed multipart body", nil))
			return
		}
		if len(value) > maxFieldBytes {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", name+" too long", nil))
			return
		}
		switch name {
		case "sns_url":
			in.URL = strings.TrimSpace(string(value))
		case "partnership_code":
			in.PartnershipCode = strings.TrimSpace(string(value))
		}
	}
	app, submitErr := h.engine.SubmitSNS(r.Context(), actor, id, slot, in)
	if submitErr != nil {
		h.fail(w, r, submitErr)
		return
	}
	respondJSON(w, http.StatusOK, app)
}

func (h uploadHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	se := handleError(err)
	if se.GetStatus() >= http.StatusInternalServerError {
		h.logger.Error("upload request failed",
			"event", "upload_failed",
			"module", logModule,
			"layer", "http",
			"path", r.URL.Path,
		)
	}
	respondStatusError(w, se)
}

func slotParam(r *http.Request) (int, huma.StatusError) {
	raw := chi.URLParam(r, "slot")
	slot, err := strconv.Atoi(raw)
	if err != nil || slot < 0 || slot > 4 {
		return 0, newAPIError(http.StatusBadRequest, "bad_request", "invalid slot", map[string]any{"slot": raw})
	}
	return slot, nil
}

func dispositionFileName(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
