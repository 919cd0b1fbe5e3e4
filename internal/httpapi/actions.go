package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"

	"leadsync-engine/internal/config"
	"leadsync-engine/internal/domain"
	"leadsync-engine/internal/leads"
	"leadsync-engine/internal/store"
)

const maxWarmPages = 10

// actionRequest is the body of POST /api. Only the fields an action reads
// matter; everything else is ignored.
type actionRequest struct {
	Action string `json:"action"`

	// getLeads, exportCSV
	Title    string `json:"title"`
	Industry string `json:"industry"`
	Query    string `json:"query"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`

	// getLeads filter, updateStatus value
	Contacted *bool `json:"contacted"`

	// fetchLeads
	Filters *domain.Filters `json:"filters"`
	Page    int             `json:"page"`

	// updateStatus
	Email string `json:"email"`

	// saveSettings
	Settings *domain.Settings `json:"settings"`

	// warmCache
	Pages int `json:"pages"`

	// exportCSV
	Save bool `json:"save"`

	// clearAll
	Confirm bool `json:"confirm"`
}

func (a actionRequest) listOpts() store.ListOpts {
	return store.ListOpts{
		Title:     a.Title,
		Industry:  a.Industry,
		Contacted: a.Contacted,
		Query:     a.Query,
		Limit:     a.Limit,
		Offset:    a.Offset,
	}
}

type ActionHandler struct {
	Svc       *leads.Service
	CfgVal    *atomic.Value // stores config.Config
	ExportDir string
}

type actionFunc func(r *http.Request, req actionRequest) (map[string]any, error)

func (h ActionHandler) actions() map[string]actionFunc {
	return map[string]actionFunc{
		"getLeads":     h.getLeads,
		"fetchLeads":   h.fetchLeads,
		"updateStatus": h.updateStatus,
		"getStats":     h.getStats,
		"getSettings":  h.getSettings,
		"saveSettings": h.saveSettings,
		"exportCSV":    h.exportCSV,
		"clearCache":   h.clearCache,
		"warmCache":    h.warmCache,
		"clearAll":     h.clearAll,
	}
}

// Serve dispatches POST /api on the "action" field. Every reply is
// {"success": true, ...} or {"success": false, "error": "..."}.
func (h ActionHandler) Serve(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeAction(w, r, http.StatusBadRequest, nil, fmt.Errorf("invalid JSON: %v", err))
		return
	}

	fn, ok := h.actions()[req.Action]
	if !ok {
		writeAction(w, r, http.StatusBadRequest, nil, fmt.Errorf("unknown action %q", req.Action))
		return
	}

	out, err := fn(r, req)
	if err != nil {
		status, code := statusFor(err)
		log.Printf("level=warn msg=\"action failed\" request_id=%s action=%s code=%s err=%q",
			RequestIDFrom(r.Context()), req.Action, code, err)
		writeAction(w, r, status, nil, err)
		return
	}
	writeAction(w, r, http.StatusOK, out, nil)
}

func writeAction(w http.ResponseWriter, r *http.Request, status int, payload map[string]any, err error) {
	body := map[string]any{"success": err == nil}
	for k, v := range payload {
		body[k] = v
	}
	if err != nil {
		body["error"] = err.Error()
		if id := RequestIDFrom(r.Context()); id != "" {
			body["request_id"] = id
		}
	}
	WriteJSON(w, status, body)
}

func (h ActionHandler) getLeads(r *http.Request, req actionRequest) (map[string]any, error) {
	all, err := h.Svc.List(r.Context(), req.listOpts())
	if err != nil {
		return nil, err
	}
	return map[string]any{"leads": all, "count": len(all)}, nil
}

func (h ActionHandler) fetchLeads(r *http.Request, req actionRequest) (map[string]any, error) {
	var f domain.Filters
	if req.Filters != nil {
		f = *req.Filters
	} else {
		st, err := h.Svc.GetSettings(r.Context())
		if err != nil {
			return nil, err
		}
		f = st.Filters
	}
	if req.Page > 0 {
		f.Page = req.Page
	}

	res, err := h.Svc.Fetch(r.Context(), f)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"leads":      res.Leads,
		"count":      len(res.Leads),
		"added":      res.Added,
		"fromCache":  res.FromCache,
		"report":     res.Report,
		"page":       res.Page,
		"totalPages": res.TotalPages,
	}, nil
}

func (h ActionHandler) updateStatus(r *http.Request, req actionRequest) (map[string]any, error) {
	if req.Contacted == nil {
		return nil, fmt.Errorf("%w: contacted is required", leads.ErrInvalidInput)
	}
	if err := h.Svc.UpdateStatus(r.Context(), req.Email, *req.Contacted); err != nil {
		return nil, err
	}
	return map[string]any{"email": req.Email, "contacted": *req.Contacted}, nil
}

func (h ActionHandler) getStats(r *http.Request, _ actionRequest) (map[string]any, error) {
	st, err := h.Svc.Stats(r.Context())
	if err != nil {
		return nil, err
	}
	return map[string]any{"stats": st}, nil
}

func (h ActionHandler) getSettings(r *http.Request, _ actionRequest) (map[string]any, error) {
	st, err := h.Svc.GetSettings(r.Context())
	if err != nil {
		return nil, err
	}
	return map[string]any{"settings": st}, nil
}

func (h ActionHandler) saveSettings(r *http.Request, req actionRequest) (map[string]any, error) {
	if req.Settings == nil {
		return nil, fmt.Errorf("%w: settings is required", leads.ErrInvalidInput)
	}
	st, err := h.Svc.SaveSettings(r.Context(), *req.Settings)
	if err != nil {
		return nil, err
	}
	return map[string]any{"settings": st}, nil
}

func (h ActionHandler) exportCSV(r *http.Request, req actionRequest) (map[string]any, error) {
	if req.Save {
		path, ex, err := h.Svc.SaveExport(r.Context(), h.ExportDir, req.listOpts())
		if err != nil {
			return nil, err
		}
		return map[string]any{"fileName": ex.FileName, "path": path, "count": ex.Count}, nil
	}

	ex, err := h.Svc.ExportCSV(r.Context(), req.listOpts())
	if err != nil {
		return nil, err
	}
	return map[string]any{"fileName": ex.FileName, "csv": ex.Content, "count": ex.Count}, nil
}

func (h ActionHandler) clearCache(r *http.Request, _ actionRequest) (map[string]any, error) {
	if err := h.Svc.ClearCache(r.Context()); err != nil {
		return nil, err
	}
	return map[string]any{"message": "cache cleared"}, nil
}

func (h ActionHandler) warmCache(r *http.Request, req actionRequest) (map[string]any, error) {
	pages := req.Pages
	if pages <= 0 && h.CfgVal != nil {
		if cfg, ok := h.CfgVal.Load().(config.Config); ok {
			pages = cfg.Cache.WarmPages
		}
	}
	if pages <= 0 {
		pages = 1
	}
	pages = min(pages, maxWarmPages)

	res, err := h.Svc.WarmCache(r.Context(), pages)
	if err != nil {
		return nil, err
	}
	return map[string]any{"warm": res}, nil
}

func (h ActionHandler) clearAll(r *http.Request, req actionRequest) (map[string]any, error) {
	n, err := h.Svc.ClearAll(r.Context(), req.Confirm)
	if err != nil {
		return nil, err
	}
	return map[string]any{"removed": n}, nil
}
