package httpapi

import (
	"database/sql"
	"net/http"
)

type DBHandler struct {
	DB *sql.DB
}

// Checkpoint folds the SQLite WAL back into the main file, e.g. before
// copying the database. Loopback only.
func (h DBHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	if !IsLocal(r) {
		WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
		return
	}

	if _, err := h.DB.ExecContext(r.Context(), `PRAGMA wal_checkpoint(FULL);`); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "checkpoint_failed", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
