package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/fpang/dalle-mcp-server/internal/imagegen"
	"github.com/fpang/dalle-mcp-server/internal/params"
	"github.com/fpang/dalle-mcp-server/internal/retention"
)

const maxBodyBytes = 1 << 20

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(a.started)
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"version":       a.opts.Version,
		"uptime":        uptime.Round(time.Second).String(),
		"uptimeSeconds": int64(uptime.Seconds()),
		"generation":    a.opts.Generator != nil,
	})
}

func (a *api) handleModels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"models": params.Models()})
}

func (a *api) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.opts.Metrics.Snapshot())
}

type validationResponse struct {
	Error string           `json:"error"`
	Field string           `json:"field"`
	Kind  params.ErrorKind `json:"kind"`
}

func (a *api) handleGenerate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httpError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	p, err := params.ValidateJSON(body)
	if err != nil {
		ve, ok := params.AsValidationError(err)
		if !ok {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondJSON(w, http.StatusBadRequest, validationResponse{
			Error: "Invalid " + ve.Field + ": " + ve.Message,
			Field: ve.Field,
			Kind:  ve.Kind,
		})
		return
	}

	if a.opts.Generator == nil {
		httpError(w, http.StatusServiceUnavailable, imagegen.ErrNoAPIKey.Error())
		return
	}

	res, err := a.opts.Generator.Generate(r.Context(), *p)
	if err != nil {
		resp := map[string]any{"error": "Image generation failed: " + imagegen.UpstreamMessage(err)}
		if status := imagegen.UpstreamStatus(err); status != 0 {
			resp["upstreamStatus"] = status
		}
		respondJSON(w, http.StatusBadGateway, resp)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// cleanupOverrides reads overrides from a JSON body, falling back to query
// parameters (dryRun, retentionDays, maxFiles).
func cleanupOverrides(r *http.Request) (retention.Overrides, error) {
	var o retention.Overrides

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return o, err
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &o); err != nil {
			return o, &retention.PolicyError{Field: "body", Message: err.Error()}
		}
	}

	q := r.URL.Query()
	if v := q.Get("dryRun"); v != "" && o.DryRun == nil {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return o, &retention.PolicyError{Field: "dryRun", Message: "must be a boolean"}
		}
		o.DryRun = &b
	}
	if v := q.Get("retentionDays"); v != "" && o.RetentionDays == nil {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return o, &retention.PolicyError{Field: "retentionDays", Message: "must be a number"}
		}
		o.RetentionDays = &f
	}
	if v := q.Get("maxFiles"); v != "" && o.MaxFiles == nil {
		n, err := strconv.Atoi(v)
		if err != nil {
			return o, &retention.PolicyError{Field: "maxFiles", Message: "must be an integer"}
		}
		o.MaxFiles = &n
	}
	return o, nil
}

func (a *api) handleCleanup(w http.ResponseWriter, r *http.Request) {
	overrides, err := cleanupOverrides(r)
	if err == nil {
		var policy retention.Policy
		policy, err = overrides.Apply(a.opts.Policy)
		if err == nil {
			a.runCleanup(w, r, policy)
			return
		}
	}

	var pe *retention.PolicyError
	if errors.As(err, &pe) {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": pe.Error(), "field": pe.Field})
		return
	}
	httpError(w, http.StatusBadRequest, err.Error())
}

func (a *api) runCleanup(w http.ResponseWriter, r *http.Request, policy retention.Policy) {
	res, err := a.opts.Sweeper.Cleanup(r.Context(), a.opts.OutputDir, policy)
	if err != nil {
		log.Error().Err(err).Str("dir", a.opts.OutputDir).Msg("Admin cleanup failed")
		httpError(w, http.StatusInternalServerError, "cleanup failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (a *api) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.opts.Sweeper.Stats(r.Context(), a.opts.OutputDir)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to read image directory: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (a *api) handleImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || containsPathTraversal(name) || strings.HasPrefix(name, ".") {
		httpError(w, http.StatusBadRequest, "invalid image name")
		return
	}
	if !retention.IsImageFile(name) {
		httpError(w, http.StatusBadRequest, "unsupported file type")
		return
	}

	path := filepath.Join(a.opts.OutputDir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		httpError(w, http.StatusNotFound, "image not found")
		return
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, path)
}
