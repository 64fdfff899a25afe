package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/dramgate/internal/authn"
	memcache "github.com/dropDatabas3/dramgate/internal/cache/memory"
	"github.com/dropDatabas3/dramgate/internal/domain/repository"
	"github.com/dropDatabas3/dramgate/internal/http/controllers"
	"github.com/dropDatabas3/dramgate/internal/http/router"
	"github.com/dropDatabas3/dramgate/internal/security/password"
	"github.com/dropDatabas3/dramgate/internal/security/secretbox"
	"github.com/dropDatabas3/dramgate/internal/security/totp"
	"github.com/dropDatabas3/dramgate/internal/session"
	"github.com/dropDatabas3/dramgate/internal/store/memory"
	"github.com/dropDatabas3/dramgate/internal/twofactor"
)

const userPassword = "Sup3r.Secreta!"

type env struct {
	srv  *httptest.Server
	user *repository.User
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := memory.New()
	box, err := secretbox.New(bytes.Repeat([]byte{0x07}, 32))
	require.NoError(t, err)

	phc, err := password.Hash(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}, userPassword)
	require.NoError(t, err)
	user, err := store.Create(context.Background(), repository.CreateUserInput{
		Username: "ana", Email: "ana@example.com", PasswordHash: phc,
	})
	require.NoError(t, err)

	second := twofactor.NewService(twofactor.Deps{
		Users: store, Creds: store, Box: box,
		Issuer: "dramgate-test", Window: 1, Sitewide: true,
	})
	sessions := session.NewManager([]byte("test-secret-32-bytes-aaaaaaaaaaa"), time.Hour, 5*time.Minute)
	login := authn.NewService(authn.Deps{
		Users: store, Second: second, Cache: memcache.New(time.Minute),
		Sessions: sessions, Sitewide: true, ChallengeTTL: time.Minute,
	})

	handler := router.New(router.Deps{
		Auth:     controllers.NewAuthController(login),
		MFA:      controllers.NewMFAController(second),
		Session:  controllers.NewSessionController(sessions),
		Config:   controllers.NewConfigController(password.Requirements{MinLength: 8, ComplexityRequired: true, RequireUpper: true, RequireDigit: true}),
		Health:   controllers.NewHealthController(nil),
		Sessions: sessions,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &env{srv: srv, user: user}
}

func (e *env) post(t *testing.T, path, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return e.do(t, req)
}

func (e *env) get(t *testing.T, path, bearer string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return e.do(t, req)
}

func (e *env) do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

// login hace el primer paso y devuelve lo que haya (session o challenge).
func (e *env) login(t *testing.T) map[string]any {
	t.Helper()
	resp, body := e.post(t, "/v1/auth/login", "", map[string]string{
		"identifier": "ana", "password": userPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "login failed: %v", body)
	return body
}

func TestLogin_IssuesSessionWithout2FA(t *testing.T) {
	e := newEnv(t)
	body := e.login(t)

	require.Equal(t, false, body["requires_second_factor"])
	require.NotEmpty(t, body["session_token"])
}

func TestLogin_BadCredentials(t *testing.T) {
	e := newEnv(t)
	resp, body := e.post(t, "/v1/auth/login", "", map[string]string{
		"identifier": "ana", "password": "incorrecta",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "INVALID_CREDENTIALS", body["code"])
}

func TestLogin_MissingFields(t *testing.T) {
	e := newEnv(t)
	resp, body := e.post(t, "/v1/auth/login", "", map[string]string{"identifier": "ana"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "MISSING_FIELDS", body["code"])
}

func TestMFA_RequiresAuthentication(t *testing.T) {
	e := newEnv(t)
	resp, body := e.post(t, "/v1/mfa/enroll", "", map[string]string{"password": userPassword})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "UNAUTHORIZED", body["code"])
}

func TestFullEnrollmentAndChallengeFlow(t *testing.T) {
	e := newEnv(t)

	// 1. Login sin 2FA: sesión directa.
	token := e.login(t)["session_token"].(string)

	// 2. Enroll.
	resp, body := e.post(t, "/v1/mfa/enroll", token, map[string]string{"password": userPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode, "%v", body)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	secretB32 := body["secret_base32"].(string)
	require.Contains(t, body["otpauth_url"], "otpauth://totp/")

	raw, err := totp.DecodeSecret(secretB32)
	require.NoError(t, err)

	// 3. Verify: habilita y entrega backup codes.
	resp, body = e.post(t, "/v1/mfa/verify", token, map[string]string{
		"code": totp.CodeAt(raw, time.Now()),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "%v", body)
	codes := body["backup_codes"].([]any)
	require.Len(t, codes, twofactor.BackupCodeCount)

	// 4. Status refleja enabled.
	resp, body = e.get(t, "/v1/mfa/status", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["enabled"])
	require.Equal(t, "enabled", body["state"])

	// 5. Login ahora exige segundo factor.
	loginBody := e.login(t)
	require.Equal(t, true, loginBody["requires_second_factor"])
	challenge := loginBody["challenge_token"].(string)

	// 6. Challenge con backup code.
	resp, body = e.post(t, "/v1/auth/mfa/challenge", "", map[string]string{
		"challenge_token": challenge, "backup_code": codes[0].(string),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "%v", body)
	require.NotEmpty(t, body["session_token"])
}

func TestSessionStatusAndRefresh(t *testing.T) {
	e := newEnv(t)
	token := e.login(t)["session_token"].(string)

	resp, body := e.get(t, "/v1/session/status", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, e.user.ID, body["user_id"])
	require.Equal(t, false, body["expiring"])
	require.Greater(t, body["time_remaining_seconds"], float64(0))

	resp, body = e.post(t, "/v1/session/refresh", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body["session_token"])
}

func TestSession_RejectsGarbageToken(t *testing.T) {
	e := newEnv(t)
	resp, body := e.get(t, "/v1/session/status", "garbage")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "TOKEN_INVALID", body["code"])
}

func TestPasswordRequirements_Public(t *testing.T) {
	e := newEnv(t)
	resp, body := e.get(t, "/v1/config/password-requirements", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(8), body["min_length"])
	require.Equal(t, true, body["require_uppercase"])
}

func TestSecurityHeadersPresent(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.get(t, "/healthz", "")
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	e := newEnv(t)
	resp, body := e.get(t, "/v1/unknown", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "NOT_FOUND", body["code"])
}
