package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-rbac/internal/app"
	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/migrations"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)
	ctx := context.Background()

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.PGDSN, migrations.FS, logger); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Seeding permission catalog and roles...")
	roles, err := app.SeedRoles(ctx, rbac.NewService(rbac.NewRepository(pool)), app.DefaultRoleSeeds())
	if err != nil {
		log.Fatalf("seed rbac: %v", err)
	}
	for _, seed := range app.DefaultRoleSeeds() {
		fmt.Printf("  %s (id=%d, %d permissions)\n", seed.Name, roles[seed.Name].ID, len(seed.Codenames))
	}

	fmt.Println("→ Seeding administrator...")
	admin := roles[app.RoleAdministrator]
	if err := seedAdmin(ctx, pool, cfg.SeedAdminEmail, cfg.SeedAdminPassword, admin.ID); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

// seedAdmin creates the administrator account, or re-binds it to the
// Administrator role when it already exists. The password is left untouched.
func seedAdmin(ctx context.Context, pool *pgxpool.Pool, email, password string, roleID int64) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO users (email, name, password_hash, is_active, role_id, created_at, updated_at)
		VALUES ($1, 'Administrator', $2, TRUE, $3, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET role_id = EXCLUDED.role_id, updated_at = NOW()`,
		email, string(hash), roleID)
	return err
}
