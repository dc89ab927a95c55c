package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chantier-tracker/internal/config"
	"chantier-tracker/internal/models"
	"chantier-tracker/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	techID uint
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	testutil.CreateUser(t, db, "admin@test.local", "Admin123!", models.RoleAdmin)
	testutil.CreateUser(t, db, "gestion@test.local", "Gestion123!", models.RoleGestionnaire)
	tech := testutil.CreateUser(t, db, "tech@test.local", "Tech1234!", models.RoleTechnicien)

	cfg := &config.Config{
		Env: "test",
		Auth: config.AuthConfig{
			JWTSecret:     "jwt-test-secret",
			TokenTTL:      time.Hour,
			SessionSecret: "session-test-secret",
		},
	}
	return &testServer{
		t:      t,
		router: NewRouter(cfg, NewDeps(db, cfg, testutil.Logger())),
		techID: tech.ID,
	}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(email, password string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	decode(s.t, w, &out)
	require.NotEmpty(s.t, out.Token)
	return out.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type chantierResponse struct {
	ID            uint   `json:"id"`
	Status        string `json:"status"`
	Progression   int    `json:"progression"`
	DisplayStatus string `json:"display_status"`
	Interventions []struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	} `json:"interventions"`
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "admin@test.local", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "admin@test.local"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	token := s.login("ADMIN@test.local", "Admin123!")
	w = s.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me map[string]any
	decode(t, w, &me)
	require.Equal(t, "admin", me["role"])
	require.NotContains(t, me, "password_hash")
}

func TestSessionCookieLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "gestion@test.local", "password": "Gestion123!"})
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestUnauthenticatedAndForbidden(t *testing.T) {
	s := newTestServer(t)
	tech := s.login("tech@test.local", "Tech1234!")
	gestion := s.login("gestion@test.local", "Gestion123!")

	require.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/chantiers", "", nil).Code)
	require.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/chantiers", "bogus", nil).Code)

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/chantiers", tech, nil).Code)
	require.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/chantiers", tech, gin.H{"title": "Interdit"}).Code)
	require.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/users", gestion, nil).Code)
	require.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/audit", gestion, nil).Code)
}

func TestChantierLifecycle(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin@test.local", "Admin123!")
	tech := s.login("tech@test.local", "Tech1234!")

	w := s.do(http.MethodPost, "/api/chantiers", admin, gin.H{"title": "ab", "budget": -1})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var verr struct {
		Details map[string]string `json:"details"`
	}
	decode(t, w, &verr)
	require.Equal(t, "min_length_3", verr.Details["title"])

	w = s.do(http.MethodPost, "/api/chantiers", admin, gin.H{"title": "Maison individuelle", "budget": 180000})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ch chantierResponse
	decode(t, w, &ch)
	require.Equal(t, "planifie", ch.DisplayStatus)
	require.Equal(t, 0, ch.Progression)

	var ivIDs []uint
	for i, status := range []string{"terminee", "terminee", "en_cours", "planifiee"} {
		body := gin.H{"title": fmt.Sprintf("Lot %d", i+1), "chantier_id": ch.ID, "status": status}
		if status == "planifiee" {
			body["technicien_id"] = s.techID
		}
		w = s.do(http.MethodPost, "/api/interventions", admin, body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var iv struct{ ID uint }
		decode(t, w, &iv)
		ivIDs = append(ivIDs, iv.ID)
	}

	w = s.do(http.MethodGet, fmt.Sprintf("/api/chantiers/%d", ch.ID), tech, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &ch)
	require.Equal(t, 50, ch.Progression)
	require.Len(t, ch.Interventions, 4)

	// technicians only move their own work forward
	w = s.do(http.MethodPatch, fmt.Sprintf("/api/interventions/%d", ivIDs[2]), tech, gin.H{"status": "terminee"})
	require.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(http.MethodPatch, fmt.Sprintf("/api/interventions/%d", ivIDs[3]), tech, gin.H{"status": "en_cours"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPatch, fmt.Sprintf("/api/interventions/%d", ivIDs[3]), tech, gin.H{"status": "terminee"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, fmt.Sprintf("/api/interventions/%d", ivIDs[3]), tech, nil).Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/chantiers/%d", ch.ID), admin, nil)
	decode(t, w, &ch)
	require.Equal(t, 75, ch.Progression)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/interventions/%d", ivIDs[2]), admin, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, fmt.Sprintf("/api/chantiers/%d", ch.ID), admin, nil)
	decode(t, w, &ch)
	require.Equal(t, 100, ch.Progression)
	require.Equal(t, "termine", ch.DisplayStatus)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/chantiers/%d/report", ch.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	w = s.do(http.MethodGet, fmt.Sprintf("/api/chantiers/%d/history", ch.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/chantiers/%d", ch.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var del struct {
		Removed int `json:"interventions_removed"`
	}
	decode(t, w, &del)
	require.Equal(t, 3, del.Removed)

	require.Equal(t, http.StatusNotFound, s.do(http.MethodGet, fmt.Sprintf("/api/chantiers/%d", ch.ID), admin, nil).Code)
	require.Equal(t, http.StatusNotFound, s.do(http.MethodGet, fmt.Sprintf("/api/interventions/%d", ivIDs[0]), admin, nil).Code)

	w = s.do(http.MethodGet, "/api/interventions?chantier_id="+fmt.Sprint(ch.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"total":0`)
}

func TestDashboardAndFilters(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin@test.local", "Admin123!")

	for _, body := range []gin.H{
		{"title": "Urgence fuite", "priority": "critique"},
		{"title": "Chantier livré", "status": "termine"},
		{"title": "Futur chantier"},
	} {
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/chantiers", admin, body).Code)
	}

	w := s.do(http.MethodGet, "/api/dashboard", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var d struct {
		Counts map[string]int `json:"counts"`
		Total  int            `json:"total"`
	}
	decode(t, w, &d)
	require.Equal(t, 3, d.Total)
	require.Equal(t, map[string]int{"en_cours": 1, "termine": 1, "planifie": 1}, d.Counts)

	w = s.do(http.MethodGet, "/api/chantiers?display_status=en_cours", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Urgence fuite")
	require.Contains(t, w.Body.String(), `"total":1`)

	require.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/chantiers?limit=abc", admin, nil).Code)
	require.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/chantiers/abc", admin, nil).Code)
}

func TestClientImportUpload(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin@test.local", "Admin123!")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "clients.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("nom,ville\nCharpente Roux,Dijon\nCharpente Roux,Dijon\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/clients/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Created int `json:"created"`
		Errors  []struct {
			Line int `json:"line"`
		} `json:"errors"`
	}
	decode(t, w, &res)
	require.Equal(t, 1, res.Created)
	require.Len(t, res.Errors, 1)
	require.Equal(t, 3, res.Errors[0].Line)

	w = s.do(http.MethodPost, "/api/clients", admin, gin.H{"name": "charpente roux"})
	require.Equal(t, http.StatusConflict, w.Code)

	require.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/clients/import", admin, nil).Code)
}

func TestUserAdministration(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin@test.local", "Admin123!")

	w := s.do(http.MethodPost, "/api/users", admin, gin.H{
		"email": "nouveau@test.local", "password": "Nouveau123!", "role": "technicien",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var u struct{ ID uint }
	decode(t, w, &u)

	token := s.login("nouveau@test.local", "Nouveau123!")
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/auth/me", token, nil).Code)

	w = s.do(http.MethodPatch, fmt.Sprintf("/api/users/%d", u.ID), admin, gin.H{"active": false})
	require.Equal(t, http.StatusOK, w.Code)

	// the existing token stops working as soon as the account is disabled
	require.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", token, nil).Code)

	w = s.do(http.MethodPut, "/api/users/me/password", admin, gin.H{"current_password": "Admin123!", "new_password": "Changed123!"})
	require.Equal(t, http.StatusNoContent, w.Code)
	s.login("admin@test.local", "Changed123!")
}
