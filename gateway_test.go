package walletauth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/walletauth/contractsession"
	"github.com/MrEthical07/walletauth/kv"
	"github.com/MrEthical07/walletauth/permission"
	"github.com/MrEthical07/walletauth/session"
	"github.com/MrEthical07/walletauth/siwe"
	"github.com/MrEthical07/walletauth/siwf"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const testDomain = "app.example.com"

type staticCustody map[uint64]common.Address

func (s staticCustody) CustodyAddress(_ context.Context, fid uint64) (common.Address, error) {
	addr, ok := s[fid]
	if !ok {
		return common.Address{}, siwf.ErrUnknownFID
	}
	return addr, nil
}

// testRelay serves channel state from memory and verifies locally.
type testRelay struct {
	verifier *siwf.Verifier
	mu       sync.Mutex
	status   *siwf.ChannelStatus
}

func (r *testRelay) CreateChannel(_ context.Context, req siwf.ChannelRequest) (*siwf.Channel, error) {
	return &siwf.Channel{ChannelToken: "tok", URL: "farcaster://connect?channelToken=tok", Nonce: req.Nonce}, nil
}

func (r *testRelay) Status(context.Context, string) (*siwf.ChannelStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == nil {
		return &siwf.ChannelStatus{State: siwf.StatePending}, nil
	}
	st := *r.status
	return &st, nil
}

func (r *testRelay) VerifySignInMessage(ctx context.Context, p siwf.VerifyParams) (siwf.VerifyResult, error) {
	return r.verifier.VerifySignInMessage(ctx, p)
}

type gatewayTest struct {
	gw    *Gateway
	mr    *miniredis.Miniredis
	relay *testRelay
	audit *ChannelSink
	// custody key of fid 42
	fidKey *ecdsa.PrivateKey
}

func newGatewayTest(t *testing.T, mutate func(*Config)) *gatewayTest {
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

	fidKey := newKey(t)
	clock := func() time.Time { return testNow }
	relay := &testRelay{
		verifier: siwf.NewVerifier(
			staticCustody{42: crypto.PubkeyToAddress(fidKey.PublicKey)},
			siwe.WithClock(clock),
		),
	}

	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte(strings.Repeat("k", 32))
	cfg.SIWF.Domain = testDomain
	cfg.SIWF.PollInterval = 5 * time.Millisecond
	cfg.SIWF.PollDeadline = time.Second
	cfg.SIWE.Domain = testDomain
	cfg.Audit.BufferSize = 256
	cfg.Audit.DropIfFull = false
	if mutate != nil {
		mutate(&cfg)
	}

	sink := NewChannelSink(256)
	gw, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithRelay(relay).
		WithAuditSink(sink).
		WithClock(clock).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(gw.Close)

	return &gatewayTest{gw: gw, mr: mr, relay: relay, audit: sink, fidKey: fidKey}
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func sign(t *testing.T, key *ecdsa.PrivateKey, text string) string {
	t.Helper()
	sig, err := crypto.Sign(siwe.HashMessage(text), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func siweMessage(key *ecdsa.PrivateKey, nonce string) string {
	return (&siwe.Message{
		Domain:    testDomain,
		Address:   crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Statement: "Sign in to the wallet automation service.",
		URI:       "https://" + testDomain + "/login",
		Version:   "1",
		ChainID:   8453,
		Nonce:     nonce,
		IssuedAt:  testNow.Add(-time.Minute),
	}).String()
}

func siwfMessage(key *ecdsa.PrivateKey, fid string) string {
	return (&siwe.Message{
		Domain:    testDomain,
		Address:   crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Statement: siwf.Statement,
		URI:       "https://" + testDomain + "/login",
		Version:   "1",
		ChainID:   siwf.ChainID,
		Nonce:     "abcDEF123456",
		IssuedAt:  testNow.Add(-time.Minute),
		Resources: []string{"farcaster://fid/" + fid},
	}).String()
}

func waitForAudit(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s audit event", eventType)
		}
	}
}

func TestSignInWithEthereumCreatesSession(t *testing.T) {
	tc := newGatewayTest(t, nil)
	ctx := context.Background()
	key := newKey(t)

	nonce, err := tc.gw.IssueNonce(ctx, "")
	if err != nil {
		t.Fatalf("issue nonce: %v", err)
	}
	msg := siweMessage(key, nonce)
	sess, err := tc.gw.SignInWithEthereum(ctx, SIWERequest{Message: msg, Signature: sign(t, key, msg)})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()
	if sess.User.ID != addr || sess.User.AuthProvider != session.ProviderEthereum || sess.Type != "default" {
		t.Fatalf("unexpected session %+v", sess)
	}
	ok, err := tc.gw.ValidateSession(ctx, sess.ID)
	if err != nil || !ok {
		t.Fatalf("validate: %v %v", ok, err)
	}

	ev := waitForAudit(t, tc.audit, AuditSignIn)
	if !ev.Success || ev.SessionID != sess.ID {
		t.Fatalf("unexpected audit event %+v", ev)
	}

	// The nonce was consumed.
	if _, err := tc.gw.SignInWithEthereum(ctx, SIWERequest{Message: msg, Signature: sign(t, key, msg)}); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("replay: expected ErrVerificationFailed, got %v", err)
	}
	if got := tc.gw.metrics.Value(MetricSIWESuccess); got != 1 {
		t.Fatalf("siwe success metric = %d", got)
	}
}

func TestSignInWithEthereumThrottlesFailures(t *testing.T) {
	tc := newGatewayTest(t, func(c *Config) {
		c.Security.MaxFailedSignIns = 2
	})
	attackerCtx := WithClientIP(context.Background(), "198.51.100.66")
	victimCtx := WithClientIP(context.Background(), "203.0.113.10")
	victim, attacker := newKey(t), newKey(t)

	// Bad signatures claiming the victim's address count against the sender.
	nonce, _ := tc.gw.IssueNonce(attackerCtx, testDomain)
	forged := siweMessage(victim, nonce)
	for i := 0; i < 2; i++ {
		if _, err := tc.gw.SignInWithEthereum(attackerCtx, SIWERequest{Message: forged, Signature: sign(t, attacker, forged)}); !errors.Is(err, ErrVerificationFailed) {
			t.Fatalf("attempt %d: expected ErrVerificationFailed, got %v", i, err)
		}
	}
	if _, err := tc.gw.SignInWithEthereum(attackerCtx, SIWERequest{Message: forged, Signature: sign(t, attacker, forged)}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if tc.gw.metrics.Value(MetricSignInRateLimited) != 1 {
		t.Fatal("rate limit not counted")
	}

	nonce, _ = tc.gw.IssueNonce(victimCtx, testDomain)
	msg := siweMessage(victim, nonce)
	sess, err := tc.gw.SignInWithEthereum(victimCtx, SIWERequest{Message: msg, Signature: sign(t, victim, msg)})
	if err != nil {
		t.Fatalf("victim locked out: %v", err)
	}
	if sess.User.ID != crypto.PubkeyToAddress(victim.PublicKey).Hex() {
		t.Fatalf("unexpected user %+v", sess.User)
	}

	// The attacker's own identity is still refused from the throttled IP.
	nonce, _ = tc.gw.IssueNonce(attackerCtx, testDomain)
	own := siweMessage(attacker, nonce)
	if _, err := tc.gw.SignInWithEthereum(attackerCtx, SIWERequest{Message: own, Signature: sign(t, attacker, own)}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected throttled ip to stay limited, got %v", err)
	}
}

func TestSignInWithFarcaster(t *testing.T) {
	tc := newGatewayTest(t, nil)
	ctx := context.Background()

	msg := siwfMessage(tc.fidKey, "42")
	sess, err := tc.gw.SignInWithFarcaster(ctx, SIWFRequest{Message: msg, Signature: sign(t, tc.fidKey, msg)})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	// Without a channel the profile is never caller-supplied.
	if sess.User.ID != "fid:42" || sess.User.FID != 42 || sess.User.Username != "!42" || sess.User.DisplayName != "" || sess.User.PfpURL != "" {
		t.Fatalf("unexpected user %+v", sess.User)
	}
	if sess.User.Address != crypto.PubkeyToAddress(tc.fidKey.PublicKey).Hex() {
		t.Fatalf("custody address not recorded: %s", sess.User.Address)
	}

	// With a channel token the profile comes from the relay.
	tc.relay.status = &siwf.ChannelStatus{State: siwf.StateCompleted, FID: 42, Username: "alice", DisplayName: "Alice"}
	sess, err = tc.gw.SignInWithFarcaster(ctx, SIWFRequest{Message: msg, Signature: sign(t, tc.fidKey, msg), ChannelToken: "tok"})
	if err != nil {
		t.Fatalf("sign in with channel: %v", err)
	}
	if sess.User.Username != "alice" || sess.User.DisplayName != "Alice" {
		t.Fatalf("profile not taken from channel: %+v", sess.User)
	}

	tc.relay.status = &siwf.ChannelStatus{State: siwf.StateCompleted, FID: 7, Username: "bob"}
	if _, err := tc.gw.SignInWithFarcaster(ctx, SIWFRequest{Message: msg, Signature: sign(t, tc.fidKey, msg), ChannelToken: "tok"}); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("foreign channel: expected ErrVerificationFailed, got %v", err)
	}
}

func TestSignInWithFarcasterRejectsNonCustodySigner(t *testing.T) {
	tc := newGatewayTest(t, nil)
	ctx := context.Background()
	imposter := newKey(t)

	msg := siwfMessage(imposter, "42")
	_, err := tc.gw.SignInWithFarcaster(ctx, SIWFRequest{Message: msg, Signature: sign(t, imposter, msg)})
	if !errors.Is(err, ErrVerificationFailed) || !strings.Contains(err.Error(), "custody") {
		t.Fatalf("expected custody rejection, got %v", err)
	}

	msg = siwfMessage(tc.fidKey, "99")
	if _, err := tc.gw.SignInWithFarcaster(ctx, SIWFRequest{Message: msg, Signature: sign(t, tc.fidKey, msg)}); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("unknown fid: expected ErrVerificationFailed, got %v", err)
	}
	if tc.gw.metrics.Value(MetricSIWFFailure) != 2 {
		t.Fatalf("siwf failure metric = %d", tc.gw.metrics.Value(MetricSIWFFailure))
	}
}

func TestCompleteFarcasterChannel(t *testing.T) {
	tc := newGatewayTest(t, nil)
	ctx := context.Background()

	msg := siwfMessage(tc.fidKey, "42")
	tc.relay.status = &siwf.ChannelStatus{
		State:     siwf.StateCompleted,
		Nonce:     "abcDEF123456",
		Message:   msg,
		Signature: sign(t, tc.fidKey, msg),
		FID:       42,
		Username:  "alice",
	}
	sess, err := tc.gw.CompleteFarcasterChannel(ctx, "tok", "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if sess.User.Username != "alice" {
		t.Fatalf("unexpected user %+v", sess.User)
	}
}

func TestCompleteFarcasterChannelTimesOut(t *testing.T) {
	tc := newGatewayTest(t, func(c *Config) {
		c.SIWF.PollDeadline = 30 * time.Millisecond
	})

	_, err := tc.gw.CompleteFarcasterChannel(context.Background(), "tok", "")
	if !errors.Is(err, siwf.ErrTimeout) {
		t.Fatalf("expected siwf.ErrTimeout, got %v", err)
	}
	var te *siwf.TimeoutError
	if !errors.As(err, &te) || te.LastStatus == nil || te.LastStatus.State != siwf.StatePending {
		t.Fatalf("timeout must carry last status, got %+v", te)
	}
}

func TestSessionLifecycle(t *testing.T) {
	tc := newGatewayTest(t, nil)
	ctx := context.Background()

	sess, err := tc.gw.CreateSession(ctx, "test", session.User{
		ID:           "u1",
		Address:      "0xabc",
		AuthProvider: session.ProviderFarcaster,
		FID:          1,
		Username:     "u",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.ID == "" || sess.User.ID != "u1" {
		t.Fatalf("unexpected session %+v", sess)
	}

	got, err := tc.gw.GetSession(ctx, sess.ID)
	if err != nil || got == nil || got.User.ID != "u1" {
		t.Fatalf("get: %+v %v", got, err)
	}

	ok, err := tc.gw.ExtendSession(ctx, sess.ID, time.Hour)
	if err != nil || !ok {
		t.Fatalf("extend: %v %v", ok, err)
	}
	ok, err = tc.gw.ExtendSession(ctx, "AAAAAAAAAAAAAAAAAAAAAA", time.Hour)
	if err != nil || ok {
		t.Fatalf("extend of unknown id: %v %v", ok, err)
	}
	if _, err := tc.gw.ExtendSession(ctx, sess.ID, tc.gw.Config().Session.MaxTTL+time.Second); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("extend past max ttl: expected ErrInvalidRequest, got %v", err)
	}

	if err := tc.gw.RevokeSession(ctx, sess.ID, "bored"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad reason, got %v", err)
	}
	if err := tc.gw.RevokeSession(ctx, sess.ID, session.RevokeUserRequest); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := tc.gw.RevokeSession(ctx, sess.ID, session.RevokeUserRequest); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	got, err = tc.gw.GetSession(ctx, sess.ID)
	if err != nil || got != nil {
		t.Fatalf("expected nil after revoke, got %+v %v", got, err)
	}

	ev := waitForAudit(t, tc.audit, AuditSessionRevoked)
	if ev.Reason != string(session.RevokeUserRequest) || ev.UserID != "u1" {
		t.Fatalf("unexpected revoke audit %+v", ev)
	}
	if tc.gw.metrics.Value(MetricSessionRevoked) != 1 {
		t.Fatal("revoke must be counted once")
	}

	if _, err := tc.gw.CreateSession(ctx, "", session.User{ID: "x", AuthProvider: session.ProviderEthereum, Address: "nope"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad user, got %v", err)
	}
}

func TestStoreOutageFailsClosed(t *testing.T) {
	tc := newGatewayTest(t, nil)
	ctx := context.Background()
	tc.mr.Close()

	if _, err := tc.gw.GetSession(ctx, "AAAAAAAAAAAAAAAAAAAAAA"); !errors.Is(err, ErrUnavailable) || !errors.Is(err, kv.ErrUnavailable) {
		t.Fatalf("get: expected ErrUnavailable, got %v", err)
	}
	if ok, err := tc.gw.HasScope(ctx, "u1", "global", "read"); ok || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("has scope: expected ErrUnavailable, got %v %v", ok, err)
	}
	if err := tc.gw.Ping(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("ping: expected ErrUnavailable, got %v", err)
	}
	if tc.gw.metrics.Value(MetricStoreError) < 3 {
		t.Fatalf("store errors not counted: %d", tc.gw.metrics.Value(MetricStoreError))
	}
}

func TestServiceTokens(t *testing.T) {
	tc := newGatewayTest(t, nil)
	ctx := context.Background()

	token, err := tc.gw.IssueServiceToken(ctx, "scheduler", []string{"sessions:revoke"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := tc.gw.VerifyServiceToken(token)
	if err != nil || claims.Subject != "scheduler" || !claims.HasScope("sessions:revoke") {
		t.Fatalf("verify: %+v %v", claims, err)
	}
	if _, err := tc.gw.VerifyServiceToken(token + "x"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := tc.gw.IssueServiceToken(ctx, "", nil, 0); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("empty subject: expected ErrInvalidRequest, got %v", err)
	}
}

func TestGrantAndAdminister(t *testing.T) {
	tc := newGatewayTest(t, nil)
	ctx := context.Background()

	if _, err := tc.gw.GrantPermission(ctx, permission.GrantRequest{UserID: "ops", Resource: permission.GlobalResource, Scopes: []string{"admin"}}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	ok, err := tc.gw.CanAdminister(ctx, "ops", "wallet:0x1")
	if err != nil || !ok {
		t.Fatalf("global admin: %v %v", ok, err)
	}
	ok, _ = tc.gw.CanAdminister(ctx, "u1", "wallet:0x1")
	if ok {
		t.Fatal("u1 is not an admin")
	}

	if _, err := tc.gw.GrantPermission(ctx, permission.GrantRequest{UserID: "u1", Resource: "Wallet", Scopes: []string{"read"}}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	if _, err := tc.gw.GrantPermission(ctx, permission.GrantRequest{UserID: "u1", Resource: "wallet:0x1", Scopes: []string{"read"}, GrantedBy: "ops"}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	ev := waitForAudit(t, tc.audit, AuditPermissionGranted)
	if ev.Metadata["granted_by"] != "ops" {
		t.Fatalf("unexpected audit %+v", ev)
	}

	existed, err := tc.gw.DeactivatePermission(ctx, "u1", "wallet:0x1", "ops")
	if err != nil || !existed {
		t.Fatalf("deactivate: %v %v", existed, err)
	}
	if ev := waitForAudit(t, tc.audit, AuditPermissionDeactivated); ev.Metadata["deactivated_by"] != "ops" {
		t.Fatalf("unexpected audit %+v", ev)
	}
	if ok, _ := tc.gw.HasScope(ctx, "u1", "wallet:0x1", "read"); ok {
		t.Fatal("scope survived deactivation")
	}
	if d, _ := tc.gw.Permissions().Get(ctx, "u1", "wallet:0x1"); d == nil || d.IsActive {
		t.Fatalf("deactivated grant not kept: %+v", d)
	}
	if existed, err := tc.gw.DeactivatePermission(ctx, "u2", "wallet:0x1", "ops"); err != nil || existed {
		t.Fatalf("deactivate missing grant: %v %v", existed, err)
	}

	if err := tc.gw.RevokePermission(ctx, "u1", "wallet:0x1", "ops"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := tc.gw.HasScope(ctx, "u1", "wallet:0x1", "read"); ok {
		t.Fatal("scope survived revoke")
	}
}

func TestContractSessionPolicy(t *testing.T) {
	tc := newGatewayTest(t, func(c *Config) {
		c.ContractSession.RequireTxHash = true
		c.ContractSession.MaxDuration = 24 * time.Hour
	})
	ctx := context.Background()

	req := contractsession.CreateRequest{
		UserID:           "fid:42",
		WalletAddress:    "0x52908400098527886e0f7030069857d2e4169ee7",
		Delegate:         "0x8617e340b3d01fa5f11f306f4090fd50e238070d",
		AllowWholeWallet: true,
		ExpiresAt:        testNow.Add(12 * time.Hour),
	}
	if _, _, err := tc.gw.CreateContractSession(ctx, req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("missing tx hash: expected ErrInvalidRequest, got %v", err)
	}
	req.TxHash = "0xfeed"
	req.ExpiresAt = testNow.Add(48 * time.Hour)
	if _, _, err := tc.gw.CreateContractSession(ctx, req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("too long: expected ErrInvalidRequest, got %v", err)
	}

	req.ExpiresAt = testNow.Add(12 * time.Hour)
	cs, created, err := tc.gw.CreateContractSession(ctx, req)
	if err != nil || !created {
		t.Fatalf("create: %v %v", created, err)
	}
	waitForAudit(t, tc.audit, AuditContractSessionCreated)

	revoked, err := tc.gw.RevokeContractSession(ctx, cs.ID)
	if err != nil || !revoked.Revoked {
		t.Fatalf("revoke: %+v %v", revoked, err)
	}
	if _, err := tc.gw.RevokeContractSession(ctx, cs.ID); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if tc.gw.metrics.Value(MetricContractSessionRevoked) != 1 {
		t.Fatal("revoke must be counted once")
	}
}

func TestMirrorContractSessionFlagsPolicyOverrun(t *testing.T) {
	tc := newGatewayTest(t, func(c *Config) {
		c.ContractSession.RequireTxHash = true
		c.ContractSession.MaxDuration = 24 * time.Hour
	})
	ctx := context.Background()

	req := contractsession.CreateRequest{
		ID:               "0x00000000000000000000000000000000000000000000000000000000000000a1",
		UserID:           "fid:42",
		WalletAddress:    "0x52908400098527886e0f7030069857d2e4169ee7",
		Delegate:         "0x8617e340b3d01fa5f11f306f4090fd50e238070d",
		AllowWholeWallet: true,
		ExpiresAt:        testNow.Add(30 * 24 * time.Hour),
		TxHash:           "0xfeed",
	}
	if _, _, err := tc.gw.CreateContractSession(ctx, req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("client grant: expected ErrInvalidRequest, got %v", err)
	}

	cs, created, err := tc.gw.MirrorContractSession(ctx, req)
	if err != nil || !created {
		t.Fatalf("mirror: %v %v", created, err)
	}
	if !cs.ExceedsMaxDuration {
		t.Fatal("overrun not flagged")
	}
	ev := waitForAudit(t, tc.audit, AuditContractSessionCreated)
	if ev.Metadata["exceeds_max_duration"] != "true" {
		t.Fatalf("audit metadata %v", ev.Metadata)
	}

	req.ID = "0x00000000000000000000000000000000000000000000000000000000000000a2"
	req.ExpiresAt = testNow.Add(time.Hour)
	// Only the policy decides the flag.
	req.ExceedsMaxDuration = true
	cs, _, err = tc.gw.MirrorContractSession(ctx, req)
	if err != nil || cs.ExceedsMaxDuration {
		t.Fatalf("short grant flagged: %+v %v", cs, err)
	}
}
