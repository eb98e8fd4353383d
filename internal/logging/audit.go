package logging

import (
	"go.uber.org/zap"
)

// AuditEventType names an audited event.
type AuditEventType string

const (
	AuditTrainComplete AuditEventType = "train_complete"
	AuditRefitApplied  AuditEventType = "refit_applied"
	AuditModelSaved    AuditEventType = "model_saved"
	AuditModelsWritten AuditEventType = "models_generated"
)

// Audit records an info-level event in the audit category.
func Audit(event AuditEventType, fields ...zap.Field) {
	Get(CategoryAudit).Info(string(event), append([]zap.Field{zap.String("event", string(event))}, fields...)...)
}
