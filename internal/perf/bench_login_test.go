package perf

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-mfa/internal/auth"
	"github.com/odyssey-erp/odyssey-mfa/internal/biometric/biometrictest"
	"github.com/odyssey-erp/odyssey-mfa/internal/credentials"
	"github.com/odyssey-erp/odyssey-mfa/internal/observability"
	"github.com/odyssey-erp/odyssey-mfa/internal/session"
	"github.com/odyssey-erp/odyssey-mfa/internal/shared"
	_ "github.com/odyssey-erp/odyssey-mfa/testing"
)

const loginPassword = "correct horse battery"

func newLoginBench(tb testing.TB, users int) (*auth.Engine, *observability.Metrics) {
	tb.Helper()
	store := credentials.NewStore(credentials.NewMemoryRepository(), shared.NewKeyedMutex(), credentials.NewBcryptHasher(bcrypt.MinCost))
	face := biometrictest.NewFace()
	voice := biometrictest.NewVoice()
	face.Scores["good-face"] = 0.93
	face.Scores["weak-face"] = 0.41
	voice.Accept["good-voice"] = true

	ctx := context.Background()
	for i := 0; i < users; i++ {
		user, err := store.Create(ctx, fmt.Sprintf("user%d@example.com", i), loginPassword)
		if err != nil {
			tb.Fatalf("create user: %v", err)
		}
		user.FaceIdentityRef, user.FaceEnrolled = "person", true
		user.VoiceIdentityRef, user.VoiceEnrolled = "profile", true
		if err := store.Update(ctx, user); err != nil {
			tb.Fatalf("update user: %v", err)
		}
	}

	issuer, err := session.NewIssuer(session.Config{Secret: []byte("bench-secret")})
	if err != nil {
		tb.Fatalf("issuer: %v", err)
	}
	metrics := observability.NewMetrics()
	engine := auth.NewEngine(auth.EngineParams{
		Credentials: store,
		Face:        face,
		Voice:       voice,
		Issuer:      issuer,
		Observer:    metrics,
	})
	return engine, metrics
}

func TestLoginDecisionLatencyTargets(t *testing.T) {
	engine, metrics := newLoginBench(t, 8)
	inputs := []auth.LoginInput{
		{Password: loginPassword, FaceSample: []byte("good-face")},
		{Password: loginPassword, FaceSample: []byte("weak-face"), VoiceSample: []byte("good-voice")},
		{Password: loginPassword, FaceSample: []byte("weak-face")},
		{Password: "nope"},
	}

	samples := make([]time.Duration, 0, 80)
	for i := 0; i < 80; i++ {
		in := inputs[i%len(inputs)]
		in.Email = fmt.Sprintf("user%d@example.com", i%8)
		start := time.Now()
		_, _ = engine.Authenticate(context.Background(), in)
		samples = append(samples, time.Since(start))
	}

	if p95 := percentile95(samples); p95 > 250*time.Millisecond {
		t.Fatalf("login decision latency regression: p95=%s", p95)
	}

	families, err := metrics.Registerer().(prometheus.Gatherer).Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	accepted := metricValue(t, families, "mfa_login_decisions_total", map[string]string{"outcome": auth.OutcomeAccept, "reason": auth.ReasonOK})
	if accepted != 40 {
		t.Fatalf("accepted decisions = %v, want 40", accepted)
	}
	weak := metricValue(t, families, "mfa_login_decisions_total", map[string]string{"outcome": auth.OutcomeReject, "reason": auth.ReasonInsufficientBiometric})
	bad := metricValue(t, families, "mfa_login_decisions_total", map[string]string{"outcome": auth.OutcomeReject, "reason": auth.ReasonBadPassword})
	if weak != 20 || bad != 20 {
		t.Fatalf("rejections: insufficient=%v bad_password=%v", weak, bad)
	}
}

func BenchmarkLoginFaceAccepted(b *testing.B) {
	engine, _ := newLoginBench(b, 64)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			in := auth.LoginInput{
				Email:      fmt.Sprintf("user%d@example.com", i%64),
				Password:   loginPassword,
				FaceSample: []byte("good-face"),
			}
			if _, err := engine.Authenticate(context.Background(), in); err != nil {
				b.Errorf("authenticate: %v", err)
				return
			}
			i++
		}
	})
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	return sorted[index]
}
