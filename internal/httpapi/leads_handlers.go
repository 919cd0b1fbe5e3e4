package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"leadsync-engine/internal/leads"
	"leadsync-engine/internal/store"
)

type LeadsHandler struct {
	Svc *leads.Service
}

func listOptsFromQuery(r *http.Request) store.ListOpts {
	q := r.URL.Query()
	o := store.ListOpts{
		Title:    q.Get("title"),
		Industry: q.Get("industry"),
		Query:    q.Get("q"),
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(q.Get("contacted"))); err == nil {
		o.Contacted = &v
	}
	o.Limit, _ = strconv.Atoi(q.Get("limit"))
	o.Offset, _ = strconv.Atoi(q.Get("offset"))
	return o
}

func (h LeadsHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.Svc.List(r.Context(), listOptsFromQuery(r))
	if err != nil {
		status, code := statusFor(err)
		WriteError(w, r, status, code, err.Error())
		return
	}
	writeJSON(w, all)
}

func (h LeadsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Svc.Stats(r.Context())
	if err != nil {
		status, code := statusFor(err)
		WriteError(w, r, status, code, err.Error())
		return
	}
	writeJSON(w, st)
}

// ExportCSV streams the export as a download.
func (h LeadsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	ex, err := h.Svc.ExportCSV(r.Context(), listOptsFromQuery(r))
	if err != nil {
		status, code := statusFor(err)
		WriteError(w, r, status, code, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ex.FileName+`"`)
	_, _ = w.Write([]byte(ex.Content))
}
