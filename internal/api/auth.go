// ABOUTME: huma-described credential endpoints: register, login, refresh,
// ABOUTME: logout, change-password, and me. Session tokens travel in cookies.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub012/internal/auth"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 30 * 24 * time.Hour
)

// dummyHash is verified against when login names an unknown email, so the
// response time does not reveal whether the account exists.
const dummyHash = "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

type sessionCookies struct {
	SetCookie []http.Cookie `header:"Set-Cookie"`
}

type userProfile struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
}

type registerInput struct {
	Body struct {
		Email       string `json:"email" format:"email" maxLength:"254"`
		DisplayName string `json:"displayName" minLength:"1" maxLength:"100"`
		Password    string `json:"password" minLength:"12" maxLength:"512"`
	}
}

type registerOutput struct {
	sessionCookies
	Body userProfile
}

type loginInput struct {
	Body struct {
		Email    string `json:"email" format:"email" maxLength:"254"`
		Password string `json:"password" minLength:"1" maxLength:"512"`
	}
}

type loginOutput struct {
	sessionCookies
	Body userProfile
}

type refreshInput struct {
	RefreshToken string `cookie:"tcrm_refresh" required:"false"`
}

type refreshOutput struct {
	sessionCookies
	Body userProfile
}

type logoutOutput struct {
	sessionCookies
	Body struct {
		Status string `json:"status"`
	}
}

type changePasswordInput struct {
	Body struct {
		CurrentPassword string `json:"currentPassword" minLength:"1" maxLength:"512"`
		NewPassword     string `json:"newPassword" minLength:"12" maxLength:"512"`
	}
}

type changePasswordOutput struct {
	sessionCookies
	Body struct {
		Status string `json:"status"`
	}
}

type meOutput struct {
	Body userProfile
}

// registerAuthRoutes registers the credential endpoints. Paths are relative
// to the /api/v1/auth mount point.
func (srv *Server) registerAuthRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/register",
		Summary:     "Create an account",
	}, srv.registerOp)

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/login",
		Summary:     "Log in with email and password",
	}, srv.loginOp)

	huma.Register(api, huma.Operation{
		OperationID: "refresh",
		Method:      http.MethodPost,
		Path:        "/refresh",
		Summary:     "Rotate session tokens",
	}, srv.refreshOp)

	huma.Register(api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/logout",
		Summary:     "Clear session cookies",
	}, srv.logoutOp)

	huma.Register(api, huma.Operation{
		OperationID: "change-password",
		Method:      http.MethodPost,
		Path:        "/change-password",
		Summary:     "Change password and invalidate other sessions",
	}, srv.changePasswordOp)

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current user profile",
	}, srv.meOp)
}

func (srv *Server) registerOp(ctx context.Context, in *registerInput) (*registerOutput, error) {
	if srv.cfg.RegistrationMode != "open" {
		count, err := srv.store.CountUsers(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("registration unavailable")
		}
		if count > 0 {
			return nil, huma.Error403Forbidden("registration is closed")
		}
	}

	email := strings.ToLower(strings.TrimSpace(in.Body.Email))
	hash, err := srv.hashPassword(ctx, in.Body.Password)
	if err != nil {
		return nil, huma.Error500InternalServerError("could not process password")
	}
	user, err := srv.store.CreateUser(ctx, email, in.Body.DisplayName, hash, 1)
	if err != nil {
		if isUniqueViolation(err) { // race on concurrent register
			return nil, huma.Error409Conflict("account could not be created")
		}
		slog.ErrorContext(ctx, "register: create user", "error", err)
		return nil, huma.Error500InternalServerError("registration unavailable")
	}

	out := &registerOutput{Body: userProfile{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName}}
	if err := srv.issueSession(&out.sessionCookies, user.ID, user.TokenVersion); err != nil {
		return nil, huma.Error500InternalServerError("could not establish session")
	}
	return out, nil
}

func (srv *Server) loginOp(ctx context.Context, in *loginInput) (*loginOutput, error) {
	email := strings.ToLower(strings.TrimSpace(in.Body.Email))
	user, err := srv.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, huma.Error500InternalServerError("login unavailable")
	}

	// Always run one argon2 verification so unknown emails and wrong
	// passwords take the same time.
	hash := dummyHash
	if user != nil && user.PasswordHash != nil {
		hash = *user.PasswordHash
	}
	ok, err := srv.verifyPassword(ctx, in.Body.Password, hash)
	if err != nil || !ok || user == nil || user.PasswordHash == nil {
		return nil, huma.Error401Unauthorized("invalid email or password")
	}

	out := &loginOutput{Body: userProfile{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName}}
	if err := srv.issueSession(&out.sessionCookies, user.ID, user.TokenVersion); err != nil {
		return nil, huma.Error500InternalServerError("could not establish session")
	}
	return out, nil
}

func (srv *Server) refreshOp(ctx context.Context, in *refreshInput) (*refreshOutput, error) {
	if in.RefreshToken == "" {
		return nil, huma.Error401Unauthorized("no refresh token")
	}
	claims, err := auth.ParseRefreshToken(in.RefreshToken, srv.jwtSecret)
	if err != nil {
		return nil, huma.Error401Unauthorized("invalid refresh token")
	}
	user, err := srv.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, huma.Error500InternalServerError("refresh unavailable")
	}
	if user == nil || user.TokenVersion != claims.TokenVersion {
		return nil, huma.Error401Unauthorized("session revoked")
	}

	out := &refreshOutput{Body: userProfile{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName}}
	if err := srv.issueSession(&out.sessionCookies, user.ID, user.TokenVersion); err != nil {
		return nil, huma.Error500InternalServerError("could not establish session")
	}
	return out, nil
}

func (srv *Server) logoutOp(_ context.Context, _ *struct{}) (*logoutOutput, error) {
	out := &logoutOutput{}
	out.Body.Status = "ok"
	srv.clearSession(&out.sessionCookies)
	return out, nil
}

func (srv *Server) changePasswordOp(ctx context.Context, in *changePasswordInput) (*changePasswordOutput, error) {
	rc := RequestContextFrom(ctx)
	if rc == nil || rc.User == nil {
		return nil, huma.Error401Unauthorized("authentication required")
	}
	if rc.User.PasswordHash == nil {
		return nil, huma.Error401Unauthorized("account has no password")
	}
	ok, err := srv.verifyPassword(ctx, in.Body.CurrentPassword, *rc.User.PasswordHash)
	if err != nil || !ok {
		return nil, huma.Error401Unauthorized("current password is wrong")
	}
	newHash, err := srv.hashPassword(ctx, in.Body.NewPassword)
	if err != nil {
		return nil, huma.Error500InternalServerError("could not process password")
	}
	// Bumps token_version, which invalidates every outstanding token.
	if err := srv.store.UpdateUserPassword(ctx, rc.User.ID, newHash); err != nil {
		return nil, huma.Error500InternalServerError("could not update password")
	}

	out := &changePasswordOutput{}
	out.Body.Status = "ok"
	if err := srv.issueSession(&out.sessionCookies, rc.User.ID, rc.User.TokenVersion+1); err != nil {
		return nil, huma.Error500InternalServerError("could not establish session")
	}
	return out, nil
}

func (srv *Server) meOp(ctx context.Context, _ *struct{}) (*meOutput, error) {
	rc := RequestContextFrom(ctx)
	if rc == nil || rc.User == nil {
		return nil, huma.Error401Unauthorized("authentication required")
	}
	return &meOutput{Body: userProfile{
		ID:          rc.User.ID,
		Email:       rc.User.Email,
		DisplayName: rc.User.DisplayName,
	}}, nil
}

// issueSession mints fresh access and refresh tokens into out's cookies.
func (srv *Server) issueSession(out *sessionCookies, userID uuid.UUID, tokenVersion int) error {
	access, err := auth.IssueAccessToken(srv.jwtSecret, userID, tokenVersion, accessTokenTTL)
	if err != nil {
		return err
	}
	refresh, err := auth.IssueRefreshToken(srv.jwtSecret, userID, tokenVersion, uuid.New(), refreshTokenTTL)
	if err != nil {
		return err
	}
	out.SetCookie = []http.Cookie{
		srv.sessionCookie(accessTokenCookie, access, accessTokenTTL),
		srv.sessionCookie(refreshTokenCookie, refresh, refreshTokenTTL),
	}
	return nil
}

// clearSession expires both session cookies.
func (srv *Server) clearSession(out *sessionCookies) {
	expired := func(name string) http.Cookie {
		c := srv.sessionCookie(name, "", 0)
		c.MaxAge = -1
		return c
	}
	out.SetCookie = []http.Cookie{expired(accessTokenCookie), expired(refreshTokenCookie)}
}

func (srv *Server) sessionCookie(name, value string, ttl time.Duration) http.Cookie {
	return http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   srv.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// hashPassword runs argon2id hashing under the concurrency semaphore.
func (srv *Server) hashPassword(ctx context.Context, password string) (string, error) {
	select {
	case srv.argonSem <- struct{}{}:
		defer func() { <-srv.argonSem }()
		return auth.HashPassword(password)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// verifyPassword runs argon2id verification under the concurrency semaphore.
func (srv *Server) verifyPassword(ctx context.Context, password, hash string) (bool, error) {
	select {
	case srv.argonSem <- struct{}{}:
		defer func() { <-srv.argonSem }()
		return auth.VerifyPassword(password, hash)
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
