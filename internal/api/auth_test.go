package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/smallcorp/deskchat/internal/database"
	"github.com/smallcorp/deskchat/internal/testutil"
	"github.com/smallcorp/deskchat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var testSigningKey = []byte("test-signing-key")

func newTestApp(t *testing.T, db database.DeskChatRepository) *DeskChatApp {
	return &DeskChatApp{
		log:        testutil.TestLogger(t),
		db:         db,
		signingKey: testSigningKey,
	}
}

func TestSessionToken_roundtrip(t *testing.T) {
	s := newTestApp(t, &database.MockDeskChatRepository{})

	token, err := s.createSessionToken(types.User{Id: 42, Role: types.RoleMember}, time.Hour)
	assert.NoError(t, err, "expected no error creating token")
	assert.NotEmpty(t, token, "expected a signed token")

	userId, err := s.extractUserIdFromToken(token)
	assert.NoError(t, err, "expected no error validating token")
	assert.Equal(t, 42, userId, "expected user id to round-trip")
}

func Test_extractUserIdFromToken(t *testing.T) {
	s := newTestApp(t, &database.MockDeskChatRepository{})

	t.Run("expired token", func(t *testing.T) {
		token, err := s.createSessionToken(types.User{Id: 42}, -time.Hour)
		assert.NoError(t, err, "expected no error creating token")

		_, err = s.extractUserIdFromToken(token)
		assert.ErrorIs(t, err, ErrTokenExpired, "expected expired token error")
	})

	t.Run("garbled token", func(t *testing.T) {
		_, err := s.extractUserIdFromToken("not-a-token")
		assert.ErrorIs(t, err, ErrTokenInvalid, "expected invalid token error")
		assert.NotErrorIs(t, err, ErrTokenExpired, "garbled tokens must not read as expired")
	})

	t.Run("token signed with a different key", func(t *testing.T) {
		other := &DeskChatApp{log: s.log, signingKey: []byte("other-key")}
		token, err := other.createSessionToken(types.User{Id: 42}, time.Hour)
		assert.NoError(t, err, "expected no error creating token")

		_, err = s.extractUserIdFromToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid, "expected invalid token error")
	})

	t.Run("missing user id claim", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			expClaim: time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(testSigningKey)
		assert.NoError(t, err, "expected no error signing token")

		_, err = s.extractUserIdFromToken(signed)
		assert.ErrorIs(t, err, ErrTokenInvalid, "expected invalid token error")
	})
}

func Test_hashAndVerifyPassword(t *testing.T) {
	hash, err := hashPassword("hunter2")
	assert.NoError(t, err, "expected no error hashing password")
	assert.NotEqual(t, "hunter2", hash, "expected hash to differ from plaintext")

	assert.True(t, verifyPassword(hash, "hunter2"), "expected correct password to verify")
	assert.False(t, verifyPassword(hash, "wrong"), "expected wrong password to fail")
}

func TestCreateAccount(t *testing.T) {
	t.Run("creates a member account", func(t *testing.T) {
		db := &database.MockDeskChatRepository{}
		db.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
			return p.Username == "alice" && p.EmailAddress == "alice@example.com" && p.Role == types.RoleMember
		})).Return(database.Account{
			Id:           1,
			Username:     "alice",
			EmailAddress: "alice@example.com",
			Role:         types.RoleMember,
		}, nil)
		defer db.AssertExpectations(t)

		s := newTestApp(t, db)

		body, _ := json.Marshal(RegisterRequest{
			Email:    "alice@example.com",
			Username: "alice",
			Password: "hunter2",
		})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		s.createAccount(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code, "expected created status")

		var user types.User
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&user), "expected user in response")
		assert.Equal(t, 1, user.Id, "expected new account id")
		assert.Equal(t, types.RoleMember, user.Role, "expected self-registration to yield a member account")
	})

	t.Run("rejects incomplete request", func(t *testing.T) {
		s := newTestApp(t, &database.MockDeskChatRepository{})

		body, _ := json.Marshal(RegisterRequest{Email: "alice@example.com"})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		s.createAccount(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "expected bad request status")
	})
}

func TestLogin(t *testing.T) {
	hash, err := hashPassword("hunter2")
	assert.NoError(t, err, "expected no error hashing password")

	account := database.Account{
		Id:           1,
		Username:     "alice",
		EmailAddress: "alice@example.com",
		PasswordHash: hash,
		Role:         types.RoleAdmin,
	}

	t.Run("successful login sets the session cookie", func(t *testing.T) {
		db := &database.MockDeskChatRepository{}
		db.On("GetAccountByEmail", "alice@example.com").Return(account, nil)
		defer db.AssertExpectations(t)

		s := newTestApp(t, db)

		body, _ := json.Marshal(LoginRequest{Email: "alice@example.com", Password: "hunter2"})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		s.login(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, "expected ok status")

		cookies := rec.Result().Cookies()
		assert.Len(t, cookies, 1, "expected one cookie to be set")
		assert.Equal(t, tokenCookieKey, cookies[0].Name, "expected session cookie")
		assert.True(t, cookies[0].HttpOnly, "expected http-only cookie")

		userId, err := s.extractUserIdFromToken(cookies[0].Value)
		assert.NoError(t, err, "expected cookie to hold a valid token")
		assert.Equal(t, account.Id, userId, "expected token to resolve to the account")
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		db := &database.MockDeskChatRepository{}
		db.On("GetAccountByEmail", "alice@example.com").Return(account, nil)
		defer db.AssertExpectations(t)

		s := newTestApp(t, db)

		body, _ := json.Marshal(LoginRequest{Email: "alice@example.com", Password: "wrong"})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		s.login(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "expected unauthorized status")
		assert.Empty(t, rec.Result().Cookies(), "expected no cookie on failed login")
	})
}

func TestSession(t *testing.T) {
	db := &database.MockDeskChatRepository{}
	db.On("GetAccountById", 1).Return(database.Account{
		Id:           1,
		Username:     "alice",
		EmailAddress: "alice@example.com",
		Role:         types.RoleAdmin,
	}, nil)
	defer db.AssertExpectations(t)

	s := newTestApp(t, db)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req = req.WithContext(WithUserId(req.Context(), 1))
	rec := httptest.NewRecorder()

	s.session(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "expected ok status")

	var user types.User
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&user), "expected user in response")
	assert.Equal(t, "alice", user.Username, "expected account username")
	assert.Equal(t, types.RoleAdmin, user.Role, "expected account role")
}

func TestLogout(t *testing.T) {
	s := newTestApp(t, &database.MockDeskChatRepository{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil)
	rec := httptest.NewRecorder()

	s.logout(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code, "expected no content status")

	cookies := rec.Result().Cookies()
	assert.Len(t, cookies, 1, "expected cookie overwrite")
	assert.Empty(t, cookies[0].Value, "expected cookie value to be cleared")
}
