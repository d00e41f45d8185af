package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendall-kelly/eventflow-api/models"
)

// newAuth0Server serves /userinfo for the given bearer tokens.
func newAuth0Server(t *testing.T, profiles map[string]Auth0UserInfo) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			http.NotFound(w, r)
			return
		}
		info, ok := profiles[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		if !ok {
			http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newUserService(t *testing.T) *UserService {
	t.Helper()
	srv := newAuth0Server(t, map[string]Auth0UserInfo{
		"owner-token": {Sub: "auth0|owner", Email: "Robin@Studio.com", Name: "Robin"},
		"staff-token": {Sub: "auth0|staff", Email: "sam@studio.com", Name: "Sam"},
		"blank-token": {Sub: "auth0|blank"},
	})
	return NewUserService(setupTestDB(t), NewAuth0Client(srv.URL, testLog), testLog)
}

func TestAuth0ClientGetUserInfo(t *testing.T) {
	srv := newAuth0Server(t, map[string]Auth0UserInfo{"tok": {Sub: "auth0|1", Email: "a@b.c", Name: "A"}})
	client := NewAuth0Client(srv.URL, testLog)

	info, err := client.GetUserInfo(testCtx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "auth0|1", info.Sub)
	assert.Equal(t, "a@b.c", info.Email)

	_, err = client.GetUserInfo(testCtx, "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestProvisionUser(t *testing.T) {
	svc := newUserService(t)

	owner, err := svc.Provision(testCtx, "auth0|owner", "owner-token", RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, "robin@studio.com", owner.Email)
	assert.Equal(t, RoleOwner, owner.Role)

	staff, err := svc.Provision(testCtx, "auth0|staff", "staff-token", "admin")
	require.NoError(t, err)
	assert.Equal(t, RoleStaff, staff.Role, "unknown roles fall back to staff")

	_, err = svc.Provision(testCtx, "auth0|owner", "owner-token", RoleOwner)
	requireKind(t, err, KindConstraintViolation, "USER_EXISTS")

	_, err = svc.Provision(testCtx, "auth0|blank", "blank-token", RoleStaff)
	requireKind(t, err, KindValidation, CodeValidation)

	_, err = svc.Provision(testCtx, "auth0|nobody", "expired-token", RoleStaff)
	requireKind(t, err, KindExternalDependency, "AUTH0_ERROR")
}

func TestUpdateProfile(t *testing.T) {
	svc := newUserService(t)
	_, err := svc.Provision(testCtx, "auth0|owner", "owner-token", RoleOwner)
	require.NoError(t, err)
	_, err = svc.Provision(testCtx, "auth0|staff", "staff-token", RoleStaff)
	require.NoError(t, err)

	_, err = svc.UpdateProfile(testCtx, "auth0|staff", UpdateUserRequest{Email: strp("ROBIN@studio.com")})
	requireKind(t, err, KindConstraintViolation, "EMAIL_EXISTS")

	updated, err := svc.UpdateProfile(testCtx, "auth0|staff", UpdateUserRequest{Name: strp("Samantha"), Email: strp("Samantha@Studio.com")})
	require.NoError(t, err)
	assert.Equal(t, "Samantha", updated.Name)
	assert.Equal(t, "samantha@studio.com", updated.Email)

	_, err = svc.UpdateProfile(testCtx, "auth0|ghost", UpdateUserRequest{Name: strp("x")})
	requireKind(t, err, KindNotFound, "USER_NOT_FOUND")
}

func TestActorFor(t *testing.T) {
	svc := newUserService(t)
	owner, err := svc.Provision(testCtx, "auth0|owner", "owner-token", RoleOwner)
	require.NoError(t, err)

	actor := svc.ActorFor(testCtx, "auth0|owner", "ignored")
	require.NotNil(t, actor.ID)
	assert.Equal(t, owner.ID, *actor.ID)
	assert.Equal(t, "Robin", actor.Name)

	assert.Equal(t, models.Actor{Name: "Token Name"}, svc.ActorFor(testCtx, "auth0|unknown", "Token Name"))
	assert.Equal(t, models.Actor{Name: "auth0|unknown"}, svc.ActorFor(testCtx, "auth0|unknown", ""))
	assert.Equal(t, models.SystemActor, svc.ActorFor(testCtx, "", "anyone"))
}
