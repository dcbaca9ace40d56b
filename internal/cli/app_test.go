package cli

import (
	"bufio"
	"bytes"
	"context"
	"math/rand"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shttp "github.com/radieske/betref-client/internal/backend-simulator/http"
	"github.com/radieske/betref-client/internal/backend-simulator/state"
	"github.com/radieske/betref-client/internal/client/api"
	"github.com/radieske/betref-client/internal/client/notify"
	"github.com/radieske/betref-client/internal/client/session"
	"github.com/radieske/betref-client/internal/client/store"
	"github.com/radieske/betref-client/internal/shared/config"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type env struct {
	state *state.State
	store store.Store
	cfg   config.Config

	mu    sync.Mutex
	slept []time.Duration
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st, err := state.New(state.Config{
		AdminUser:     "admin",
		AdminPassword: "admin123",
		DrawInterval:  time.Hour,
		Rand:          rand.New(rand.NewSource(1)),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(shttp.NewServer(nil, st, shttp.NewTokens("cli-test", time.Hour), nil).Router())
	t.Cleanup(srv.Close)

	return &env{
		state: st,
		store: store.NewMemory(),
		cfg: config.Config{
			BackendURL:               srv.URL,
			NotificationTTL:          time.Second,
			AuthRedirectDelay:        2 * time.Second,
			VerificationPollInterval: 5 * time.Millisecond,
			VerificationConfirmDelay: 5 * time.Millisecond,
			LotteryPollInterval:      5 * time.Millisecond,
			DepositProofPolicy:       "unverified",
		},
	}
}

// run simula uma invocação do binário sobre o mesmo store persistente
func (e *env) run(ctx context.Context, stdin string, args ...string) (int, string) {
	var out bytes.Buffer
	app := New(Options{
		Config: e.cfg,
		Store:  e.store,
		In:     strings.NewReader(stdin),
		Out:    &syncWriter{w: &out},
		Sleep: func(d time.Duration) {
			e.mu.Lock()
			e.slept = append(e.slept, d)
			e.mu.Unlock()
		},
	})
	code := app.Run(ctx, args)
	return code, out.String()
}

type syncWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (e *env) signup(t *testing.T, name string) int64 {
	t.Helper()
	ctx := context.Background()
	code, out := e.run(ctx, "", "register", "--username", name, "--email", name+"@bet.ref", "--password", "secret1")
	require.Equal(t, ExitOK, code, out)
	e.login(t, name, "secret1")
	acc, err := e.state.Authenticate(name, "secret1")
	require.NoError(t, err)
	return acc.ID
}

func (e *env) login(t *testing.T, name, pass string) {
	t.Helper()
	code, out := e.run(context.Background(), "", "login", "-u", name, "-p", pass)
	require.Equal(t, ExitOK, code, out)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func TestUsage(t *testing.T) {
	e := newEnv(t)
	code, out := e.run(context.Background(), "")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, out, "lottery")

	code, out = e.run(context.Background(), "", "nope")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, out, "comando desconocido")

	code, _ = e.run(context.Background(), "", "deposit", "--amount", "abc")
	assert.Equal(t, ExitUsage, code)
}

func TestLoginPromptsAndMe(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	code, _ := e.run(ctx, "", "register", "-u", "ana", "-e", "ana@bet.ref", "-p", "secret1")
	require.Equal(t, ExitOK, code)

	code, out := e.run(ctx, "ana\nsecret1\n", "login")
	require.Equal(t, ExitOK, code, out)
	assert.Contains(t, out, "Bienvenido, ana")

	code, out = e.run(ctx, "", "me")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "ana <ana@bet.ref>")
	assert.Contains(t, out, "$0.00")

	code, _ = e.run(ctx, "", "logout")
	assert.Equal(t, ExitOK, code)
	code, out = e.run(ctx, "", "me")
	assert.Equal(t, ExitAuth, code)
	assert.Contains(t, out, "betref login")
}

func TestAuthExpiredRedirects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.signup(t, "ana")
	require.NoError(t, e.store.Set(ctx, session.KeyToken, "garbage"))

	code, out := e.run(ctx, "", "deposits")
	assert.Equal(t, ExitAuth, code)
	assert.Contains(t, out, api.MsgAuthExpired)
	assert.Contains(t, out, "betref login")
	assert.Less(t, strings.Index(out, api.MsgAuthExpired), strings.Index(out, "betref login"))
	assert.Equal(t, []time.Duration{2 * time.Second}, e.slept)

	var tok string
	ok, err := e.store.Get(ctx, session.KeyToken, &tok)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDepositApprovedByAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.signup(t, "ana")
	proof := writeFile(t, "comprobante.png", pngBytes)

	// conta sem verificar precisa de comprovante
	code, out := e.run(ctx, "", "deposit", "--amount", "20000", "--method", "nequi")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, out, "comprobante")

	code, out = e.run(ctx, "", "deposit", "--amount", "20000", "--method", "nequi", "--reference", "r-1", "--proof", proof)
	require.Equal(t, ExitOK, code, out)
	assert.Contains(t, out, "PENDIENTE")

	e.login(t, "admin", "admin123")
	code, out = e.run(ctx, "", "admin", "queue")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "ana")
	assert.Contains(t, out, "$20000.00")

	dep := e.state.PendingDeposits()
	require.Len(t, dep, 1)
	id := strconv.FormatInt(dep[0].ID, 10)

	code, out = e.run(ctx, "n\n", "admin", "approve-deposit", id)
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "Cancelado.")
	assert.Len(t, e.state.PendingDeposits(), 1)

	code, out = e.run(ctx, "y\n", "admin", "approve-deposit", id)
	require.Equal(t, ExitOK, code, out)
	assert.Contains(t, out, "Depósito aprobado")
	assert.Empty(t, e.state.PendingDeposits())

	e.login(t, "ana", "secret1")
	_, out = e.run(ctx, "", "me")
	assert.Contains(t, out, "$20000.00")

	_, out = e.run(ctx, "", "deposits")
	assert.Contains(t, out, "APROBADO")
}

func TestWithdrawLocalGuardAndEstimate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.signup(t, "ana")

	code, out := e.run(ctx, "", "withdraw", "--amount", "60000", "--method", "nequi", "--account", "3001234567")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, out, "Comisión estimada: $3000.00")
	assert.Contains(t, out, "Saldo insuficiente")
	assert.Empty(t, e.state.PendingWithdrawals())
}

func TestVerificationSubmitAndStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	anaID := e.signup(t, "ana")
	doc := writeFile(t, "cedula.png", pngBytes)

	code, out := e.run(ctx, "", "verify", "status")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "Sin verificar")

	code, out = e.run(ctx, "", "verify", "submit", doc)
	require.Equal(t, ExitOK, code, out)
	assert.Contains(t, out, "Documento enviado")

	_, out = e.run(ctx, "", "verify", "status")
	assert.Contains(t, out, "en revisión")

	e.login(t, "admin", "admin123")
	code, out = e.run(ctx, "y\n", "admin", "approve-verification", strconv.FormatInt(anaID, 10))
	require.Equal(t, ExitOK, code, out)

	e.login(t, "ana", "secret1")
	_, out = e.run(ctx, "", "verify", "status")
	assert.Contains(t, out, "Cuenta verificada.")
}

func TestVerifyWatchEndsOnApproval(t *testing.T) {
	e := newEnv(t)
	anaID := e.signup(t, "ana")
	doc := writeFile(t, "cedula.pdf", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		code int
		out  string
	}
	done := make(chan result, 1)
	go func() {
		code, out := e.run(ctx, "", "verify", "submit", "--watch", doc)
		done <- result{code, out}
	}()

	require.Eventually(t, func() bool { return len(e.state.Verifications()) == 1 }, 2*time.Second, 5*time.Millisecond)
	_, err := e.state.ApproveVerification(anaID)
	require.NoError(t, err)

	select {
	case r := <-done:
		assert.Equal(t, ExitOK, r.code)
		assert.Contains(t, r.out, "Cuenta verificada.")
	case <-ctx.Done():
		t.Fatal("watch did not finish")
	}
}

func TestReferralsAndUsersFilter(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	anaID := e.signup(t, "ana")
	code, out := e.run(ctx, "", "register", "-u", "bob", "-e", "bob@bet.ref", "-p", "secret1", "--referrer", strconv.FormatInt(anaID, 10))
	require.Equal(t, ExitOK, code, out)

	e.login(t, "ana", "secret1")
	code, out = e.run(ctx, "", "referrals")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "Referidos: 1")
	assert.Contains(t, out, "bob")

	e.login(t, "admin", "admin123")
	_, out = e.run(ctx, "", "admin", "users", "--filter", "verified")
	assert.Contains(t, out, "admin")
	assert.NotContains(t, out, "ana")

	_, out = e.run(ctx, "", "admin", "users", "--search", "BOB")
	assert.Contains(t, out, "bob")
	assert.NotContains(t, out, "ana@")

	code, _ = e.run(ctx, "", "admin", "users", "--filter", "weird")
	assert.Equal(t, ExitUsage, code)
}

func TestLotteryJoinAndResults(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.login(t, "admin", "admin123")

	code, out := e.run(ctx, "", "lottery", "next")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "Próximo sorteo")

	code, out = e.run(ctx, "", "lottery", "join")
	require.Equal(t, ExitOK, code, out)
	assert.Contains(t, out, "Participación registrada")

	_, ok := e.state.Draw()
	require.True(t, ok)
	_, out = e.run(ctx, "", "lottery", "results")
	assert.Contains(t, out, "ganador: admin")
}

func TestConfirmAndSink(t *testing.T) {
	var out bytes.Buffer
	ui := NewUI(bufio.NewReader(strings.NewReader("y\n\nsí\nno\n")), &out, false)
	ctx := context.Background()
	assert.True(t, ui.Confirm(ctx, "¿ok?"))
	assert.False(t, ui.Confirm(ctx, "¿ok?"))
	assert.True(t, ui.Confirm(ctx, "¿ok?"))
	assert.False(t, ui.Confirm(ctx, "¿ok?"))
	assert.Contains(t, out.String(), "[y/N]")

	out.Reset()
	ui.Sink(notify.Notification{Level: notify.Error, Message: "falló"})
	assert.Equal(t, "[✗] falló\n", out.String())

	out.Reset()
	NewUI(bufio.NewReader(strings.NewReader("")), &out, true).Sink(notify.Notification{Level: notify.Success, Message: "ok"})
	assert.Equal(t, colorGreen+"[✓] ok"+colorReset+"\n", out.String())
}
