package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/sellora/internal/audit"
	auditdomain "github.com/smallbiznis/sellora/internal/audit/domain"
	"github.com/smallbiznis/sellora/internal/authorization"
	"github.com/smallbiznis/sellora/internal/clock"
	"github.com/smallbiznis/sellora/internal/cloudmetrics"
	"github.com/smallbiznis/sellora/internal/config"
	"github.com/smallbiznis/sellora/internal/contact"
	"github.com/smallbiznis/sellora/internal/deal"
	"github.com/smallbiznis/sellora/internal/identity"
	identitydomain "github.com/smallbiznis/sellora/internal/identity/domain"
	"github.com/smallbiznis/sellora/internal/identity/session"
	"github.com/smallbiznis/sellora/internal/membership"
	"github.com/smallbiznis/sellora/internal/migration"
	"github.com/smallbiznis/sellora/internal/observability"
	"github.com/smallbiznis/sellora/internal/organization"
	orgdomain "github.com/smallbiznis/sellora/internal/organization/domain"
	"github.com/smallbiznis/sellora/internal/ratelimit"
	"github.com/smallbiznis/sellora/internal/seed"
	"github.com/smallbiznis/sellora/internal/server"
	"github.com/smallbiznis/sellora/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// The suite boots the full application graph against a real postgres and
// drives it over HTTP. It runs only when SELLORA_E2E is set with the usual
// DATABASE_* variables pointing at a disposable database; everything is
// skipped otherwise.

const e2ePassword = "sellora-e2e-pw"

type testEnv struct {
	app      *fx.App
	db       *gorm.DB
	identity identitydomain.Service
	orgs     orgdomain.Service
	baseURL  string
	httpSrv  *httptest.Server
}

var env *testEnv

func TestMain(m *testing.M) {
	if strings.TrimSpace(os.Getenv("SELLORA_E2E")) == "" {
		os.Exit(m.Run())
	}

	gin.SetMode(gin.TestMode)
	setDefaultEnv()

	var err error
	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start e2e environment:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func startEnv() (*testEnv, error) {
	var (
		srv         *server.Server
		engine      *gin.Engine
		dbConn      *gorm.DB
		cfg         config.Config
		identitySvc identitydomain.Service
		orgSvc      orgdomain.Service
	)

	app := fx.New(
		observability.Module,
		config.Module,
		db.Module,
		clock.Module,
		migration.Module,
		cloudmetrics.Module,
		authorization.Module,
		audit.Module,
		identity.Module,
		session.Module,
		membership.Module,
		organization.Module,
		contact.Module,
		deal.Module,
		ratelimit.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Populate(&srv, &engine, &dbConn, &cfg, &identitySvc, &orgSvc),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	if strings.ToLower(strings.TrimSpace(cfg.DBType)) != "postgres" {
		_ = app.Stop(context.Background())
		return nil, fmt.Errorf("e2e requires postgres, got %s", cfg.DBType)
	}

	httpSrv := httptest.NewServer(engine)

	return &testEnv{
		app:      app,
		db:       dbConn,
		identity: identitySvc,
		orgs:     orgSvc,
		baseURL:  httpSrv.URL,
		httpSrv:  httpSrv,
	}, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		_ = e.app.Stop(context.Background())
	}
}

func setDefaultEnv() {
	setEnvIfEmpty("ENVIRONMENT", "test")
	setEnvIfEmpty("APP_MODE", "oss")
	setEnvIfEmpty("AUTH_COOKIE_SECURE", "false")
	setEnvIfEmpty("BOOTSTRAP_PLATFORM_ADMIN", "true")
	setEnvIfEmpty("CLOUD_METRICS_ENABLED", "false")
	setEnvIfEmpty("LOG_LEVEL", "error")
}

func setEnvIfEmpty(key, value string) {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	os.Setenv(key, value)
}

func requireEnv(t *testing.T) *testEnv {
	t.Helper()
	if env == nil {
		t.Skip("set SELLORA_E2E=1 with a postgres database configured to run the e2e suite")
	}
	return env
}

// resetDatabase empties every table and reseeds the platform organization and
// its operator account, so each test starts from a fresh install.
func resetDatabase(t *testing.T, conn *gorm.DB) {
	t.Helper()
	for _, table := range []string{
		"deals", "contacts", "audit_logs", "sessions",
		"organization_members", "teams", "organizations", "users",
	} {
		require.NoError(t, conn.Exec("DELETE FROM "+table).Error, "reset %s", table)
	}
	require.NoError(t, seed.EnsurePlatformOrgAndAdmin(conn))
}

func newHTTPClient() *http.Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		panic(err)
	}
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

func doJSON(t *testing.T, client *http.Client, method, rawURL string, payload any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, rawURL, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

type apiError struct {
	Error struct {
		Type       string `json:"type"`
		Reason     string `json:"reason"`
		Permission string `json:"permission"`
	} `json:"error"`
}

func decodeAPIError(t *testing.T, body []byte) apiError {
	t.Helper()
	var payload apiError
	require.NoError(t, json.Unmarshal(body, &payload), "error body: %s", body)
	return payload
}

func login(t *testing.T, email, password string) *http.Client {
	t.Helper()
	client := newHTTPClient()
	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "login %s: %s", email, body)
	return client
}

func createUserAndLogin(t *testing.T, email, displayName string) (snowflake.ID, *http.Client) {
	t.Helper()
	user, err := env.identity.CreateUser(context.Background(), identitydomain.CreateUserRequest{
		Email:       email,
		Password:    e2ePassword,
		DisplayName: displayName,
	})
	require.NoError(t, err)
	return user.ID, login(t, email, e2ePassword)
}

type orgEnvelope struct {
	Organization orgdomain.OrganizationResponse `json:"organization"`
}

func createOrg(t *testing.T, client *http.Client, name string) string {
	t.Helper()
	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/api/organizations", map[string]string{
		"name": name,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "create org %s: %s", name, body)

	var envelope orgEnvelope
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.NotEmpty(t, envelope.Organization.ID)
	return envelope.Organization.ID
}

type dataEnvelope struct {
	Data struct {
		ID      string `json:"id"`
		OwnerID string `json:"owner_id"`
		TeamID  string `json:"team_id"`
		Stage   string `json:"stage"`
	} `json:"data"`
}

type listEnvelope struct {
	Data []json.RawMessage `json:"data"`
}

func createContact(t *testing.T, client *http.Client, name string) string {
	t.Helper()
	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/api/contacts", map[string]string{
		"name":  name,
		"email": strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "create contact: %s", body)

	var envelope dataEnvelope
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.NotEmpty(t, envelope.Data.ID)
	return envelope.Data.ID
}

func createTeam(t *testing.T, client *http.Client, name string) string {
	t.Helper()
	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/api/teams", map[string]string{
		"name": name,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "create team %s: %s", name, body)

	var envelope struct {
		Team orgdomain.TeamResponse `json:"team"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.NotEmpty(t, envelope.Team.ID)
	return envelope.Team.ID
}

func addMember(t *testing.T, client *http.Client, userID snowflake.ID, role, teamID string) {
	t.Helper()
	resp, body := doJSON(t, client, http.MethodPost, env.baseURL+"/api/members", map[string]string{
		"user_id": userID.String(),
		"role":    role,
		"team_id": teamID,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "add member %s: %s", userID, body)
}

func TestE2E_HealthCheck(t *testing.T) {
	e := requireEnv(t)
	resetDatabase(t, e.db)

	resp, err := http.Get(e.baseURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestE2E_SeededPlatformOperator(t *testing.T) {
	e := requireEnv(t)
	resetDatabase(t, e.db)

	client := login(t, "admin@sellora.cloud", "admin")

	resp, body := doJSON(t, client, http.MethodGet, e.baseURL+"/auth/me", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me struct {
		User struct {
			Email              string `json:"email"`
			MustChangePassword bool   `json:"must_change_password"`
		} `json:"user"`
		Principal *struct {
			Role string `json:"role"`
		} `json:"principal"`
	}
	require.NoError(t, json.Unmarshal(body, &me))
	require.Equal(t, "admin@sellora.cloud", me.User.Email)
	require.True(t, me.User.MustChangePassword, "seeded credentials must be rotated")
	require.NotNil(t, me.Principal)
	require.Equal(t, "PLATFORM_ADMIN", me.Principal.Role)
}

func TestE2E_CrossOrganizationIsolation(t *testing.T) {
	e := requireEnv(t)
	resetDatabase(t, e.db)

	_, alice := createUserAndLogin(t, "e2e-alice@example.com", "E2E Alice")
	orgA := createOrg(t, alice, "E2E Alpha Corp")
	contactID := createContact(t, alice, "E2E Ada Lovelace")

	_, bob := createUserAndLogin(t, "e2e-bob@example.com", "E2E Bob")
	createOrg(t, bob, "E2E Beta Corp")

	// Bob's listing is bounded to his own organization.
	resp, body := doJSON(t, bob, http.MethodGet, e.baseURL+"/api/contacts", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list listEnvelope
	require.NoError(t, json.Unmarshal(body, &list))
	require.Empty(t, list.Data, "no rows from another organization")

	// Fetching Alice's record by id denies with the stable payload; the
	// reason code is all Bob learns.
	resp, body = doJSON(t, bob, http.MethodGet, e.baseURL+"/api/contacts/"+contactID, nil, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	denial := decodeAPIError(t, body)
	require.Equal(t, "forbidden", denial.Error.Type)
	require.Equal(t, "organization_mismatch", denial.Error.Reason)

	// Pointing the org header at Alpha is rejected before any handler runs.
	resp, body = doJSON(t, bob, http.MethodGet, e.baseURL+"/api/contacts", nil, map[string]string{
		"X-Org-ID": orgA,
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	denial = decodeAPIError(t, body)
	require.Equal(t, "organization_mismatch", denial.Error.Reason)
}

func TestE2E_SuspensionLifecycle(t *testing.T) {
	e := requireEnv(t)
	resetDatabase(t, e.db)

	_, alice := createUserAndLogin(t, "e2e-alice@example.com", "E2E Alice")
	orgA := createOrg(t, alice, "E2E Alpha Corp")
	createContact(t, alice, "E2E Ada Lovelace")

	operator := login(t, "admin@sellora.cloud", "admin")

	// The operator writes inside its own organization like any admin.
	createContact(t, operator, "E2E Platform Note")

	resp, body := doJSON(t, operator, http.MethodPost, e.baseURL+"/api/organizations/"+orgA+"/suspend", nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode, "suspend: %s", body)

	// Reads survive suspension, writes do not.
	resp, _ = doJSON(t, alice, http.MethodGet, e.baseURL+"/api/contacts", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, alice, http.MethodPost, e.baseURL+"/api/contacts", map[string]string{
		"name": "E2E Blocked",
	}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	denial := decodeAPIError(t, body)
	require.Equal(t, "org_suspended", denial.Error.Reason)

	resp, body = doJSON(t, operator, http.MethodPost, e.baseURL+"/api/organizations/"+orgA+"/reactivate", nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode, "reactivate: %s", body)

	createContact(t, alice, "E2E After Reactivation")
}

func TestE2E_AssignmentBoundaries(t *testing.T) {
	e := requireEnv(t)
	resetDatabase(t, e.db)

	_, alice := createUserAndLogin(t, "e2e-alice@example.com", "E2E Alice")
	createOrg(t, alice, "E2E Alpha Corp")

	salesTeam := createTeam(t, alice, "E2E Sales")
	supportTeam := createTeam(t, alice, "E2E Support")

	carolID, _ := createUserAndLogin(t, "e2e-carol@example.com", "E2E Carol")
	daveID, dave := createUserAndLogin(t, "e2e-dave@example.com", "E2E Dave")
	erinID, _ := createUserAndLogin(t, "e2e-erin@example.com", "E2E Erin")

	addMember(t, alice, carolID, "TEAM_MANAGER", salesTeam)
	addMember(t, alice, daveID, "MEMBER", salesTeam)
	addMember(t, alice, erinID, "MEMBER", supportTeam)

	carol := login(t, "e2e-carol@example.com", e2ePassword)

	resp, body := doJSON(t, carol, http.MethodPost, e.baseURL+"/api/deals", map[string]any{
		"title":    "E2E Deal Alpha",
		"amount":   5000,
		"currency": "USD",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "create deal: %s", body)
	var created dataEnvelope
	require.NoError(t, json.Unmarshal(body, &created))
	dealID := created.Data.ID

	// A manager hands deals to their own roster.
	resp, body = doJSON(t, carol, http.MethodPost, e.baseURL+"/api/deals/"+dealID+"/reassign", map[string]string{
		"owner_id": daveID.String(),
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "reassign to roster: %s", body)
	var reassigned dataEnvelope
	require.NoError(t, json.Unmarshal(body, &reassigned))
	require.Equal(t, daveID.String(), reassigned.Data.OwnerID)
	require.Equal(t, salesTeam, reassigned.Data.TeamID, "team follows the new owner")

	// Another team's member is out of reach.
	resp, body = doJSON(t, carol, http.MethodPost, e.baseURL+"/api/deals/"+dealID+"/reassign", map[string]string{
		"owner_id": erinID.String(),
	}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	denial := decodeAPIError(t, body)
	require.Equal(t, "target_outside_team", denial.Error.Reason)

	// Members hold no assignment permission at all, not even toward
	// themselves.
	resp, body = doJSON(t, dave, http.MethodPost, e.baseURL+"/api/deals/"+dealID+"/reassign", map[string]string{
		"owner_id": daveID.String(),
	}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	denial = decodeAPIError(t, body)
	require.Equal(t, "role_lacks_permission", denial.Error.Reason)
}

func TestE2E_InvariantBreachSurfaces(t *testing.T) {
	e := requireEnv(t)
	resetDatabase(t, e.db)

	bobID, bob := createUserAndLogin(t, "e2e-bob@example.com", "E2E Bob")
	createOrg(t, bob, "E2E Beta Corp")

	// Corrupt the stored role behind the application's back. The closed enum
	// refuses it on the next request and the breach is audited.
	require.NoError(t, e.db.Exec(
		`UPDATE organization_members SET role = 'OWNER' WHERE user_id = ?`, int64(bobID),
	).Error)

	resp, _ := doJSON(t, bob, http.MethodGet, e.baseURL+"/api/contacts", nil, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var breaches int64
	require.NoError(t, e.db.Raw(
		`SELECT COUNT(*) FROM audit_logs WHERE action = ?`, auditdomain.ActionInvariantBreach,
	).Scan(&breaches).Error)
	require.NotZero(t, breaches, "invariant breach must land in the audit log")

	// A vanished membership orphans the principal instead.
	require.NoError(t, e.db.Exec(
		`DELETE FROM organization_members WHERE user_id = ?`, int64(bobID),
	).Error)

	resp, _ = doJSON(t, bob, http.MethodGet, e.baseURL+"/api/contacts", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
