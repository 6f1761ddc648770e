package crud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dailyyoga/objsync/entity"
	"go.uber.org/zap"
)

// errorBody is the recognized error payload:
//
//	{"error": {"kind": "conflict", "type": "Customer", "id": 7, "newVersion": {...}}}
type errorBody struct {
	Error struct {
		Kind       string         `json:"kind"`
		Type       string         `json:"type"`
		ID         any            `json:"id"`
		Key        string         `json:"key"`
		Message    string         `json:"message"`
		NewVersion entity.Payload `json:"newVersion"`
	} `json:"error"`
}

func parseErrorBody(body []byte) *errorBody {
	if len(body) == 0 {
		return &errorBody{}
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return &errorBody{}
	}
	return &eb
}

// triage classifies a failed request. Order matters: cancellation first,
// then status 401, then recognized payloads, then bare statuses.
func (d *defaultDao) triage(ctx context.Context, req *Request, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		d.logger.Debug("request cancelled", zap.String("url", req.URL), zap.Error(err))
		return &CancelledError{Err: err}
	}

	var se *StatusError
	if !errors.As(err, &se) {
		d.logger.Error("request failed", zap.String("method", req.Method), zap.String("url", req.URL), zap.Error(err))
		return &UnhandledError{Err: err}
	}

	if se.Status == http.StatusUnauthorized {
		if d.onUnauthorized != nil {
			d.onUnauthorized(ctx, req)
		}
		return &NotAuthorizedError{URL: req.URL}
	}

	body := parseErrorBody(se.Body).Error
	switch {
	case se.Status == http.StatusNotFound && body.Kind == KindNotFound:
		nf := &NotFoundError{Type: body.Type, ID: entity.FormatID(body.ID), Message: body.Message}
		if nf.Type == "" && nf.ID == "" {
			nf.Type, nf.ID = req.Type, req.ID
		}
		return nf
	case body.Kind == KindSecurity:
		return &SecurityError{Message: body.Message}
	case body.Kind == KindConflict:
		ce := &ConflictError{Type: body.Type, ID: entity.FormatID(body.ID), NewVersion: body.NewVersion, Message: body.Message}
		if ce.NewVersion != nil {
			if ce.Type == "" {
				ce.Type = ce.NewVersion.TypeName()
			}
			if ce.ID == "" {
				ce.ID = ce.NewVersion.ID()
			}
		}
		return ce
	case body.Kind == KindConstraint:
		return &ValidationError{Key: body.Key, Message: body.Message}
	case se.Status == http.StatusForbidden || se.Status == http.StatusGone:
		return &SemanticError{Status: se.Status, Message: body.Message}
	}

	d.logger.Error("unhandled server error",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Int("status", se.Status),
		zap.ByteString("body", se.Body),
	)
	return &UnhandledError{Status: se.Status, Err: se}
}
