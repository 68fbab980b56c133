package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rosterly/attendance-engine/engine"
	"github.com/rosterly/attendance-engine/sweep"
)

func TestWriteError_TaxonomyMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &engine.ValidationError{Field: "month", Reason: "must be 1-12"}, http.StatusBadRequest},
		{"not found", &engine.NotFoundError{Kind: "event", ID: "ev-1"}, http.StatusNotFound},
		{"invalid state", &engine.InvalidStateError{Op: "check-out", Reason: "no open check-in"}, http.StatusConflict},
		{"sweep busy", sweep.ErrSweepRunning, http.StatusConflict},
		{"internal", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tc.err)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
