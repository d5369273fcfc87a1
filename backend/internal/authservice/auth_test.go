package authservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edufiliova/backend/internal/user"
)

type memUsers struct {
	mu     sync.Mutex
	byName map[string]*user.User
	seq    int
}

func newMemUsers() *memUsers { return &memUsers{byName: map[string]*user.User{}} }

func (m *memUsers) CreateUser(ctx context.Context, username string, role user.Role, hash []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[username]; ok {
		return "", user.ErrUsernameTaken
	}
	m.seq++
	id := fmt.Sprintf("user-%d", m.seq)
	m.byName[username] = &user.User{ID: id, Username: username, Role: role, PasswordHash: hash}
	return id, nil
}

func (m *memUsers) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byName[username]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func newTestRouter() (*gin.Engine, *Signer) {
	gin.SetMode(gin.TestMode)
	signer := NewSigner("test-secret", time.Minute, time.Hour)
	r := gin.New()
	NewHandler(newMemUsers(), signer).Routes(r)
	return r, signer
}

func doJSON(r http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSigner_TokenCarriesRole(t *testing.T) {
	s := NewSigner("k", time.Minute, time.Hour)
	tok, exp, err := s.SignAccessToken("u1", "alice", "teacher")
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := s.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "teacher", claims.Role)
	assert.Equal(t, TokenAccess, claims.Type)

	_, err = NewSigner("other", 0, 0).ParseToken(tok)
	assert.Error(t, err, "token signed with another secret must be rejected")
}

func TestAuthFlow_RegisterLoginVerifyRefresh(t *testing.T) {
	r, _ := newTestRouter()

	w := doJSON(r, http.MethodPost, "/v1/auth/register", gin.H{"username": "alice", "password": "secret1", "role": "teacher"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(r, http.MethodPost, "/v1/auth/register", gin.H{"username": "alice", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, "/v1/auth/login", gin.H{"username": "alice", "password": "wrong!!"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/v1/auth/login", gin.H{"username": "alice", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = doJSON(r, http.MethodPost, "/v1/auth/verify", nil, map[string]string{"Authorization": "Bearer " + login.AccessToken})
	require.Equal(t, http.StatusOK, w.Code)
	var verified map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verified))
	assert.Equal(t, "teacher", verified["role"])
	assert.Equal(t, TokenAccess, verified["type"])

	w = doJSON(r, http.MethodPost, "/v1/auth/refresh", gin.H{"refreshToken": login.AccessToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "access token must not refresh")

	w = doJSON(r, http.MethodPost, "/v1/auth/refresh", gin.H{"refreshToken": login.RefreshToken}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegister_RejectsAdminAndUnknownRoles(t *testing.T) {
	r, _ := newTestRouter()
	for _, role := range []string{"admin", "root"} {
		w := doJSON(r, http.MethodPost, "/v1/auth/register", gin.H{"username": "bob" + role, "password": "secret1", "role": role}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, role)
	}
}

func TestVerify_MissingHeader(t *testing.T) {
	r, _ := newTestRouter()
	w := doJSON(r, http.MethodPost, "/v1/auth/verify", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
