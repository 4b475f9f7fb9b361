package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"billed/internal/config"
	"billed/internal/core"
	"billed/internal/log"
)

type fakeUsers struct {
	seen []string
}

func (f *fakeUsers) Ensure(ctx context.Context, email, password string, userType core.UserType) error {
	if password == "" {
		return errors.New("incomplete account")
	}
	f.seen = append(f.seen, email+":"+string(userType))
	return nil
}

func TestSeedUsers(t *testing.T) {
	var buf bytes.Buffer
	lc := log.DefaultConfig()
	lc.Output = &buf
	logger := log.New(lc)

	users := &fakeUsers{}
	failed := SeedUsers(context.Background(), logger, users, []config.SeedUser{
		{Email: "employee@test.tld", Password: "employee", Type: core.Employee},
		{Email: "broken@test.tld", Type: core.Employee},
		{Email: "admin@test.tld", Password: "admin", Type: core.Admin},
	})

	if failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}
	if got := strings.Join(users.seen, ","); got != "employee@test.tld:Employee,admin@test.tld:Admin" {
		t.Fatalf("seeded = %s", got)
	}
	if !strings.Contains(buf.String(), "broken@test.tld") {
		t.Fatal("seed failure not logged")
	}
}

func TestSetupLogger(t *testing.T) {
	cfg := &config.Config{LogLevel: "debug", LogFormat: "json"}
	logger := SetupLogger(cfg, log.ComponentWorker)
	if logger.Component() != log.ComponentWorker {
		t.Fatalf("component = %q", logger.Component())
	}
}
