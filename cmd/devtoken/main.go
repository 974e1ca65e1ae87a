/*
main.go - Development token issuer

PURPOSE:
  Prints a signed principal token for calling the API locally. The server
  does not implement login; this tool stands in for it during development.

MODES:
  Direct principal:
    devtoken -tenant <id> -user <id> -role admin

  Password check against a SQLite database:
    devtoken -sqlite ledger.db -tenant <id> -email alice@acme.com -password ...

  The signing secret is read from JWT_SECRET unless -secret is given.

EXAMPLE:
  TOKEN=$(devtoken -tenant $T -user $U -role staff)
  curl -H "Authorization: Bearer $TOKEN" localhost:8080/api/lots
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/warp/lot-ledger/account"
	"github.com/warp/lot-ledger/api"
	"github.com/warp/lot-ledger/inventory"
	"github.com/warp/lot-ledger/store/sqlite"
)

func main() {
	tenant := flag.String("tenant", "", "tenant ID")
	user := flag.String("user", "", "user ID (direct mode)")
	role := flag.String("role", string(inventory.RoleAdmin), "role: admin or staff (direct mode)")
	dbPath := flag.String("sqlite", "", "SQLite database to authenticate against")
	email := flag.String("email", "", "user email (with -sqlite)")
	password := flag.String("password", "", "user password (with -sqlite)")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HMAC signing secret")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := run(*tenant, *user, *role, *dbPath, *email, *password, *secret, *ttl); err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
}

func run(tenant, user, role, dbPath, email, password, secret string, ttl time.Duration) error {
	if secret == "" {
		return fmt.Errorf("no secret: set JWT_SECRET or pass -secret")
	}
	if tenant == "" {
		return fmt.Errorf("-tenant is required")
	}

	p := inventory.Principal{
		TenantID: inventory.TenantID(tenant),
		UserID:   inventory.UserID(user),
		Role:     inventory.Role(role),
	}
	if dbPath != "" {
		s, err := sqlite.New(dbPath)
		if err != nil {
			return err
		}
		defer s.Close()

		u, err := account.New(s).Authenticate(context.Background(), p.TenantID, email, password)
		if err != nil {
			return err
		}
		p.UserID, p.Role = u.ID, u.Role
	}
	if p.UserID == "" || !p.Role.Valid() {
		return fmt.Errorf("need -user and a valid -role, or -sqlite with -email and -password")
	}

	token, err := api.NewAuth(secret).Issue(p, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
