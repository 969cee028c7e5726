// Command createadmin provisions an admin account against the hosted
// backend: it creates (or verifies) the user, then promotes its profile
// role to "admin".
//
// Usage: createadmin <email> <password>
//
// When row-level policy blocks the automated promotion, the SQL to run
// manually is printed; with ADMIN_DATABASE_URL set it is applied directly
// instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mellanby-hall/portal/internal/config"
	"github.com/mellanby-hall/portal/internal/gateway"
	"github.com/mellanby-hall/portal/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if !cfg.HasBackend() {
		return errors.New("missing PORTAL_BACKEND_URL or PORTAL_BACKEND_ANON_KEY in environment/.env")
	}

	if len(os.Args) < 3 {
		fmt.Println("Usage: createadmin <email> <password>")
		os.Exit(1)
	}
	email, password := os.Args[1], os.Args[2]

	ctx := context.Background()
	gw := gateway.NewClient(cfg.BackendURL, cfg.BackendAnonKey)
	defer gw.Close()

	fmt.Printf("Creating user %s...\n", email)

	userID, err := ensureUser(ctx, gw, email, password)
	if err != nil {
		return err
	}
	fmt.Println("User ID:", userID)

	fmt.Println("Attempting to set role to admin...")
	remediation := fmt.Sprintf("UPDATE profiles SET role = 'admin' WHERE id = '%s';", userID)

	err = gw.From("profiles").Eq("id", userID).Update(ctx, map[string]string{"role": session.AdminRole})
	if err != nil {
		fmt.Println("Could not update role automatically (likely a row-level policy restriction):", err)
		return remediate(ctx, cfg.AdminDatabaseURL, remediation, userID)
	}

	// The update can report success yet change nothing when policy
	// silently filters the row, so read the role back.
	role, err := gw.ProfileRole(ctx, userID)
	if err != nil {
		fmt.Println("Could not verify role:", err)
		printManualStep(remediation)
		return nil
	}
	if role != session.AdminRole {
		fmt.Println("Update command succeeded but role is still:", role)
		return remediate(ctx, cfg.AdminDatabaseURL, remediation, userID)
	}

	fmt.Println("Successfully set user role to admin!")
	return nil
}

// ensureUser signs the account up, falling back to a credential-verifying
// sign-in when it already exists, and returns the user id.
func ensureUser(ctx context.Context, gw *gateway.Client, email, password string) (string, error) {
	sess, err := gw.SignUp(ctx, email, password)
	switch {
	case errors.Is(err, gateway.ErrAlreadyRegistered):
		fmt.Println("User already exists, attempting to sign in to verify credentials...")
		sess, err = gw.SignInWithPassword(ctx, email, password)
		if err != nil {
			return "", fmt.Errorf("could not sign in: %w", err)
		}
		fmt.Println("Signed in successfully.")
	case err != nil:
		return "", fmt.Errorf("creating user: %w", err)
	default:
		fmt.Println("User created successfully.")
	}

	if sess == nil || sess.User == nil || sess.User.ID == "" {
		return "", errors.New("sign up succeeded but no user data returned (check email confirmation settings)")
	}
	return sess.User.ID, nil
}

// remediate applies the promotion directly over the database connection
// when one is configured, and otherwise prints the manual step.
func remediate(ctx context.Context, databaseURL, remediation, userID string) error {
	if databaseURL == "" {
		printManualStep(remediation)
		return nil
	}

	fmt.Println("Applying role update directly via ADMIN_DATABASE_URL...")

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		printManualStep(remediation)
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer conn.Close(ctx)

	tag, err := conn.Exec(ctx, "UPDATE profiles SET role = 'admin' WHERE id = $1", userID)
	if err != nil {
		printManualStep(remediation)
		return fmt.Errorf("updating profile role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		printManualStep(remediation)
		return fmt.Errorf("no profile row found for user %s", userID)
	}

	fmt.Println("Successfully set user role to admin!")
	return nil
}

func printManualStep(remediation string) {
	fmt.Println("IMPORTANT: Please run the following SQL in your backend dashboard's SQL editor to grant admin access:")
	fmt.Println(remediation)
}
