package postgres

import (
	repo "github.com/baharkarakas/credits-backend/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	Users     repo.Users
	Purchases repo.Purchases
	AuditLogs repo.AuditLogs
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Users:     &usersRepo{pool},
		Purchases: &purchasesRepo{pool},
		AuditLogs: &auditLogsRepo{pool},
	}
}
