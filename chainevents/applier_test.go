package chainevents

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	walletauth "github.com/MrEthical07/walletauth"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	testSessionID = "6f1c2d3e-4b5a-4c6d-8e7f-9a0b1c2d3e4f"
	testWallet    = "0x52908400098527886e0f7030069857d2e4169ee7"
	testDelegate  = "0x8617e340b3d01fa5f11f306f4090fd50e238070d"
	testToken     = "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"
)

func newApplier(t *testing.T) (*Applier, *walletauth.Gateway, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	cfg := walletauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(strings.Repeat("k", 32))
	cfg.SIWF.Domain = "app.example.com"
	cfg.SIWF.RelayURL = "https://relay.example.com"
	cfg.SIWF.HubURL = "https://hub.example.com"
	cfg.Audit.Enabled = false

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw, err := walletauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(logger).
		WithClock(func() time.Time { return testNow }).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(gw.Close)
	return NewApplier(gw, logger), gw, mr
}

func grantedEvent() Event {
	return Event{
		Name:              SessionGranted,
		ContractSessionID: testSessionID,
		UserID:            "fid:42",
		Wallet:            testWallet,
		Delegate:          testDelegate,
		AllowedTokens:     []string{testToken},
		ExpiresAt:         testNow.Add(24 * time.Hour).Unix(),
		TxHash:            "0xABCD",
		BlockNumber:       100,
	}
}

func TestApplySessionGrantedIsIdempotent(t *testing.T) {
	a, gw, _ := newApplier(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := a.Apply(ctx, grantedEvent()); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	list, err := gw.ContractSessions().ListByWallet(ctx, testWallet)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one session, got %d (%v)", len(list), err)
	}
	cs := list[0]
	if cs.UserID != "fid:42" || cs.TxHash != "0xabcd" || !cs.ExpiresAt.Equal(testNow.Add(24*time.Hour)) {
		t.Fatalf("unexpected session %+v", cs)
	}
	if !cs.AllowsToken(testToken) {
		t.Fatal("token not allowed")
	}
	if snap := gw.MetricsSnapshot(); snap.Counters[walletauth.MetricContractSessionCreated] != 1 {
		t.Fatalf("created counter = %d", snap.Counters[walletauth.MetricContractSessionCreated])
	}
}

func TestApplySessionRevoked(t *testing.T) {
	a, gw, _ := newApplier(t)
	ctx := context.Background()

	if err := a.Apply(ctx, grantedEvent()); err != nil {
		t.Fatalf("grant: %v", err)
	}
	rev := Event{Name: SessionRevoked, ContractSessionID: testSessionID, Wallet: testWallet}
	if err := a.Apply(ctx, rev); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	cs, err := gw.ContractSessions().Get(ctx, testSessionID)
	if err != nil || cs == nil || !cs.Revoked {
		t.Fatalf("expected revoked record, got %+v %v", cs, err)
	}

	// Unknown sessions are logged, not retried.
	rev.ContractSessionID = "00000000-0000-4000-8000-000000000000"
	if err := a.Apply(ctx, rev); err != nil {
		t.Fatalf("revoke unknown: %v", err)
	}
}

func TestApplyMirrorsChainGrantsAsIs(t *testing.T) {
	a, gw, _ := newApplier(t)
	ctx := context.Background()

	// bytes32 id and a lifetime beyond the default 90 day cap.
	ev := grantedEvent()
	ev.ContractSessionID = "0x5C0DE0000000000000000000000000000000000000000000000000000000BEEF"
	ev.ExpiresAt = testNow.Add(365 * 24 * time.Hour).Unix()
	if err := a.Apply(ctx, ev); err != nil {
		t.Fatalf("apply: %v", err)
	}

	cs, err := gw.GetContractSession(ctx, ev.ContractSessionID)
	if err != nil || cs == nil {
		t.Fatalf("grant not mirrored: %+v %v", cs, err)
	}
	if cs.ID != strings.ToLower(ev.ContractSessionID) || !cs.ExceedsMaxDuration {
		t.Fatalf("unexpected record %+v", cs)
	}

	rev := Event{Name: SessionRevoked, ContractSessionID: ev.ContractSessionID}
	if err := a.Apply(ctx, rev); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if cs, _ := gw.GetContractSession(ctx, ev.ContractSessionID); cs == nil || !cs.Revoked {
		t.Fatalf("expected revoked record, got %+v", cs)
	}
}

func TestApplyPermissionEvents(t *testing.T) {
	a, gw, _ := newApplier(t)
	ctx := context.Background()

	grant := Event{
		Name:              PermissionGranted,
		UserID:            "fid:42",
		Wallet:            testWallet,
		Scopes:            []string{"automation:dca"},
		ContractSessionID: testSessionID,
		Delegate:          testDelegate,
	}
	if err := a.Apply(ctx, grant); err != nil {
		t.Fatalf("grant: %v", err)
	}

	resource, _ := WalletResource(testWallet)
	if resource != "wallet:0x52908400098527886E0F7030069857D2E4169EE7" {
		t.Fatalf("resource = %s", resource)
	}
	ok, err := gw.HasScope(ctx, "fid:42", resource, "automation:dca")
	if err != nil || !ok {
		t.Fatalf("scope missing: %v %v", ok, err)
	}
	d, _ := gw.Permissions().Get(ctx, "fid:42", resource)
	if d == nil || d.GrantedBy != "chain" || d.Meta == nil || d.Meta.Delegation.ContractSessionID != testSessionID {
		t.Fatalf("unexpected grant %+v", d)
	}

	if err := a.Apply(ctx, Event{Name: PermissionRevoked, UserID: "fid:42", Wallet: testWallet}); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := gw.HasScope(ctx, "fid:42", resource, "automation:dca"); ok {
		t.Fatal("scope survived revoke")
	}
}

func TestApplyRejectsInvalidEvents(t *testing.T) {
	a, _, _ := newApplier(t)
	ctx := context.Background()

	noID := grantedEvent()
	noID.ContractSessionID = ""
	badDelegate := grantedEvent()
	badDelegate.Delegate = "0x1234"
	noScopes := Event{Name: PermissionGranted, UserID: "fid:42", Wallet: testWallet}
	badWallet := Event{Name: PermissionRevoked, UserID: "fid:42", Wallet: "vitalik.eth"}
	badID := grantedEvent()
	badID.ContractSessionID = "grant one"

	for name, ev := range map[string]Event{
		"unknown name":    {Name: "Transfer"},
		"missing id":      noID,
		"bad delegate":    badDelegate,
		"no scopes":       noScopes,
		"wallet not addr": badWallet,
		"malformed id":    badID,
	} {
		if err := a.Apply(ctx, ev); !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("%s: expected ErrInvalidEvent, got %v", name, err)
		}
	}
}

func TestApplyStoreOutageIsRetryable(t *testing.T) {
	a, _, mr := newApplier(t)
	mr.Close()

	err := a.Apply(context.Background(), grantedEvent())
	if !errors.Is(err, walletauth.ErrUnavailable) || errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected retryable ErrUnavailable, got %v", err)
	}
}
