package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/GregMSThompson/insight-portal/internal/errs"
	"github.com/GregMSThompson/insight-portal/internal/middleware"
	"github.com/GregMSThompson/insight-portal/internal/models"
)

const maxBodyBytes = 4 << 20

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errs.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}

func requireAdmin(sess *models.Session) error {
	if !sess.IsAdmin() {
		return errs.NewForbiddenError("admin access required")
	}
	return nil
}

func sessionFrom(r *http.Request) *models.Session {
	return middleware.Session(r.Context())
}
