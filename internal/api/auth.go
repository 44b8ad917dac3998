package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/smallcorp/deskchat/internal/database"
	"github.com/smallcorp/deskchat/internal/types"
	"golang.org/x/crypto/bcrypt"
)

var (
	defaultExp     = time.Hour * 24
	tokenCookieKey = "token"
)

// handshake failure taxonomy: a garbled or missing credential is not
// the same failure as a well-formed credential past its validity window
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

const (
	userIdClaim = "user-id"
	roleClaim   = "role"
	expClaim    = "exp"
)

type contextKey string

const userIdKey contextKey = "user-id"

func WithUserId(ctx context.Context, userId int) context.Context {
	return context.WithValue(ctx, userIdKey, userId)
}

func UserId(ctx context.Context) (int, bool) {
	userId, ok := ctx.Value(userIdKey).(int)

	return userId, ok
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *DeskChatApp) createSessionToken(user types.User, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: user.Id,
		roleClaim:   string(user.Role),
		expClaim:    time.Now().Add(exp).Unix(),
	})

	return token.SignedString(s.signingKey)
}

// extractUserIdFromToken validates a bearer credential and resolves it
// to a user id. Expired credentials are distinguished from garbled ones.
func (s *DeskChatApp) extractUserIdFromToken(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return 0, ErrTokenExpired
		}
		return 0, fmt.Errorf("%w: %s", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, ErrTokenInvalid
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok {
		return 0, fmt.Errorf("%w: missing user id claim", ErrTokenInvalid)
	}

	return int(userId), nil
}

func createJwtCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (s *DeskChatApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Email == "" || req.Username == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// self-registration always yields a standard account; privileged
	// accounts are provisioned out of band
	params := database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
		Role:         types.RoleMember,
	}

	newAccount, err := s.db.CreateAccount(params)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.User{
		Id:           newAccount.Id,
		Username:     newAccount.Username,
		EmailAddress: newAccount.EmailAddress,
		Role:         newAccount.Role,
	})
}

func (s *DeskChatApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbAccount, err := s.db.GetAccountByEmail(lr.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(dbAccount.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	u := types.User{
		Id:           dbAccount.Id,
		Username:     dbAccount.Username,
		EmailAddress: dbAccount.EmailAddress,
		Role:         dbAccount.Role,
		CreatedAt:    dbAccount.CreatedAt,
		UpdatedAt:    dbAccount.UpdatedAt,
	}

	token, err := s.createSessionToken(u, defaultExp)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultExp))

	s.writeJson(w, http.StatusOK, u)
}

func (s *DeskChatApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.GetAccountById(userId)
	if err != nil {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.User{
		Id:           account.Id,
		Username:     account.Username,
		EmailAddress: account.EmailAddress,
		Role:         account.Role,
		LastSeenAt:   account.LastSeenAt,
		CreatedAt:    account.CreatedAt,
		UpdatedAt:    account.UpdatedAt,
	})
}

func (s *DeskChatApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", time.Duration(time.Unix(0, 0).Unix())))
	w.WriteHeader(http.StatusNoContent)
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
