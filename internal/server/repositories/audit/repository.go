// Package audit persists the append-only audit log. There is deliberately
// no update or delete operation.
package audit

import (
	"context"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, e *models.AuditEntry) error
	List(ctx context.Context, f models.AuditFilter) ([]*models.AuditEntry, error)
}
