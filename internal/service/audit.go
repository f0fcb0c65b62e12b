package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/charity-tasks-api/internal/models"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type requestMetaKey struct{}

// RequestMeta identifies the client behind a request for the audit trail.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta returns a context carrying the client metadata.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFrom extracts client metadata, defaulting to a system caller.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	if meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return meta
	}
	return RequestMeta{IPAddress: "system", UserAgent: "charity-tasks-api"}
}

// emitAudit stores the entry; failures are logged and never fail the caller.
func emitAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, log *models.AuditLog) {
	if audit == nil || log == nil {
		return
	}
	meta := RequestMetaFrom(ctx)
	log.IPAddress = meta.IPAddress
	log.UserAgent = meta.UserAgent
	if err := audit.CreateAuditLog(ctx, log); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func auditPayload(v interface{}) []byte {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
