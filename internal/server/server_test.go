package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-dashboard/internal/ai"
	"github.com/jonathan/job-dashboard/internal/config"
	"github.com/jonathan/job-dashboard/internal/db"
	"github.com/jonathan/job-dashboard/internal/identity"
	"github.com/jonathan/job-dashboard/internal/session"
	"github.com/jonathan/job-dashboard/internal/types"
)

// fakeAccounts is an in-memory AccountStore.
type fakeAccounts struct {
	mu    sync.Mutex
	users map[uuid.UUID]*db.User
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{users: make(map[uuid.UUID]*db.User)}
}

func (f *fakeAccounts) CreateUser(_ context.Context, name, email, passwordHash string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.users[id] = &db.User{ID: id, Name: name, Email: email, PasswordHash: passwordHash, CreatedAt: time.Now()}
	return id, nil
}

func (f *fakeAccounts) GetUser(_ context.Context, id uuid.UUID) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeAccounts) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeAccounts) CheckEmailExists(_ context.Context, email string) (bool, error) {
	u, _ := f.GetUserByEmail(context.Background(), email)
	return u != nil, nil
}

func (f *fakeAccounts) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

// accountProvider authenticates identity sign-ins against fakeAccounts.
type accountProvider struct {
	accounts  *fakeAccounts
	passwords *config.PasswordConfig
}

func (p *accountProvider) SignIn(ctx context.Context, creds identity.Credentials) (*identity.User, error) {
	account, err := p.accounts.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		return nil, err
	}
	if account == nil || !p.passwords.VerifyPassword(creds.Password, account.PasswordHash) {
		return nil, identity.ErrInvalidCredentials
	}
	return &identity.User{ID: account.ID, Name: account.Name, Email: account.Email}, nil
}

// fakeProfileStore is an in-memory session.ProfileStore.
type fakeProfileStore struct {
	mu        sync.Mutex
	analyses  map[uuid.UUID]*types.ResumeAnalysis
	histories map[uuid.UUID][]types.Job
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{
		analyses:  make(map[uuid.UUID]*types.ResumeAnalysis),
		histories: make(map[uuid.UUID][]types.Job),
	}
}

func (f *fakeProfileStore) ReadAnalysis(_ context.Context, userID uuid.UUID) (*types.ResumeAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analyses[userID], nil
}

func (f *fakeProfileStore) WriteAnalysis(_ context.Context, userID uuid.UUID, analysis *types.ResumeAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses[userID] = analysis
	return nil
}

func (f *fakeProfileStore) ReadJobHistory(_ context.Context, userID uuid.UUID) ([]types.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Job(nil), f.histories[userID]...), nil
}

func (f *fakeProfileStore) AppendJob(_ context.Context, userID uuid.UUID, draft types.JobDraft, date string) (*types.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := types.Job{ID: uuid.New(), Title: draft.Title, Company: draft.Company, Link: draft.Link, Date: date}
	f.histories[userID] = append([]types.Job{job}, f.histories[userID]...)
	return &job, nil
}

func (f *fakeProfileStore) DeleteJob(_ context.Context, userID, jobID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.histories[userID][:0:0]
	for _, j := range f.histories[userID] {
		if j.ID != jobID {
			kept = append(kept, j)
		}
	}
	f.histories[userID] = kept
	return nil
}

// fakeAI is a scripted ai.Client.
type fakeAI struct {
	mu           sync.Mutex
	analysis     *types.ResumeAnalysis
	analyzeErr   error
	letter       string
	letterErr    error
	analyzeCalls int
}

func (f *fakeAI) AnalyzeResume(_ context.Context, _ string) (*types.ResumeAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzeCalls++
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return f.analysis, nil
}

func (f *fakeAI) GenerateCoverLetter(_ context.Context, _, _ string, _ *types.ResumeAnalysis) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.letterErr != nil {
		return "", f.letterErr
	}
	return f.letter, nil
}

func (f *fakeAI) Close() error { return nil }

type testEnv struct {
	server   *Server
	handler  http.Handler
	accounts *fakeAccounts
	profiles *fakeProfileStore
	ai       *fakeAI
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	accounts := newFakeAccounts()
	passwords := &config.PasswordConfig{BcryptCost: 10}
	profiles := newFakeProfileStore()
	aiClient := &fakeAI{
		analysis: &types.ResumeAnalysis{
			Skills:    []string{"Go", "PostgreSQL"},
			JobTitles: []string{"Backend Engineer"},
			Keywords:  []string{"Go", "API"},
		},
		letter: "Dear Hiring Manager,\n\nI am excited to apply.",
	}

	ids := identity.NewSession(&accountProvider{accounts: accounts, passwords: passwords})
	store := session.New(profiles)
	store.Bind(ids)
	t.Cleanup(store.Close)

	s := &Server{
		ai:          aiClient,
		identity:    ids,
		store:       store,
		jwtService:  NewJWTService(&config.JWTConfig{Secret: "test-secret", Expiration: time.Hour}),
		userService: NewUserService(accounts, passwords),
	}
	s.authHandler = NewAuthHandler(s.userService, s.jwtService, ids)

	return &testEnv{
		server:   s,
		handler:  s.router(),
		accounts: accounts,
		profiles: profiles,
		ai:       aiClient,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// register creates an account and returns the token from the response.
func (e *testEnv) register(t *testing.T, name, email, password string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/auth/register", "", types.CreateUserRequest{
		Name: name, Email: email, Password: password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp types.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestRegisterSignsInAndReturnsToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Ada", "ada@example.com", "password123")

	rec := env.do(t, http.MethodGet, "/session", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, session.PhaseAuthenticated, snap.Phase)
	require.NotNil(t, snap.User)
	assert.Equal(t, "ada@example.com", snap.User.Email)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Ada", "ada@example.com", "password123")

	rec := env.do(t, http.MethodPost, "/auth/register", "", types.CreateUserRequest{
		Name: "Other", Email: "ada@example.com", Password: "password456",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Ada", "ada@example.com", "password123")

	rec := env.do(t, http.MethodPost, "/auth/login", "", types.LoginRequest{
		Email: "ada@example.com", Password: "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/session"},
		{http.MethodPost, "/analyze"},
		{http.MethodGet, "/history"},
		{http.MethodPost, "/jobs/search"},
	} {
		rec := env.do(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestTokenMustMatchSignedInUser(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Ada", "ada@example.com", "password123")

	rec := env.do(t, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The token is still cryptographically valid but the session moved on
	rec = env.do(t, http.MethodGet, "/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnalyzeRejectsEmptyText(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Ada", "ada@example.com", "password123")

	rec := env.do(t, http.MethodPost, "/analyze", token, AnalyzeRequest{ResumeText: "   \n\t"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.ai.analyzeCalls, "empty input must not reach the AI client")
}

func TestAnalyzeStoresResult(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Ada", "ada@example.com", "password123")

	rec := env.do(t, http.MethodPost, "/analyze", token, AnalyzeRequest{ResumeText: "Ada Lovelace, Go engineer"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var analysis types.ResumeAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
	assert.Equal(t, []string{"Go", "PostgreSQL"}, analysis.Skills)

	// Write-through persisted the analysis remotely
	user := env.server.identity.Current()
	require.NotNil(t, user)
	assert.NotNil(t, env.profiles.analyses[user.ID])
}

func TestAnalyzeFailureClearsLocallyOnly(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Ada", "ada@example.com", "password123")

	// Seed a saved analysis via a successful analyze first
	rec := env.do(t, http.MethodPost, "/analyze", token, AnalyzeRequest{ResumeText: "Ada Lovelace"})
	require.Equal(t, http.StatusOK, rec.Code)

	env.ai.analyzeErr = &ai.AnalysisError{Err: errors.New("model unavailable")}
	rec = env.do(t, http.MethodPost, "/analyze", token, AnalyzeRequest{ResumeText: "Ada Lovelace"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// Local state cleared, remote copy untouched
	assert.Nil(t, env.server.store.ResumeAnalysis())
	user := env.server.identity.Current()
	require.NotNil(t, user)
	assert.NotNil(t, env.profiles.analyses[user.ID])
}

func TestAnalyzeUpload(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Ada", "ada@example.com", "password123")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "resume.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("Ada Lovelace\nGo engineer"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, env.ai.analyzeCalls)
}

func TestAnalyzeUploadRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Ada", "ada@example.com", "password123")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "resume.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.ai.analyzeCalls)
}

func TestCoverLetterRequiresAnalysis(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Ada", "ada@example.com", "password123")

	rec := env.do(t, http.MethodPost, "/cover-letter", token, CoverLetterRequest{
		JobTitle: "Backend Engineer", Company: "Acme",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCoverLetterRecordsJob(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Ada", "ada@example.com", "password123")

	rec := env.do(t, http.MethodPost, "/analyze", token, AnalyzeRequest{ResumeText: "Ada Lovelace"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/cover-letter", token, CoverLetterRequest{
		JobTitle: "Backend Engineer", Company: "Acme",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CoverLetterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.CoverLetter)
	require.NotNil(t, resp.Job)

	history := env.server.store.JobHistory()
	require.NotEmpty(t, history)
	head := history[0]
	assert.Equal(t, "Backend Engineer", head.Title)
	assert.Equal(t, "Acme", head.Company)
	assert.Equal(t, "https://www.google.com/search?q=Acme+careers", head.Link)
}

func TestCoverLetterFailureDoesNotRecordJob(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Ada", "ada@example.com", "password123")

	rec := env.do(t, http.MethodPost, "/analyze", token, AnalyzeRequest{ResumeText: "Ada Lovelace"})
	require.Equal(t, http.StatusOK, rec.Code)

	env.ai.letterErr = &ai.GenerationError{Err: errors.New("model unavailable")}
	rec = env.do(t, http.MethodPost, "/cover-letter", token, CoverLetterRequest{
		JobTitle: "Backend Engineer", Company: "Acme",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, env.server.store.JobHistory())
}

func TestJobSearchBuildsLinksAndRecordsSearch(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Ada", "ada@example.com", "password123")

	rec := env.do(t, http.MethodPost, "/analyze", token, AnalyzeRequest{ResumeText: "Ada Lovelace"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/jobs/search", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp JobSearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Links.LinkedIn, "linkedin.com/jobs/search")
	assert.Contains(t, resp.Links.Indeed, "indeed.com/jobs?q=")
	assert.Contains(t, resp.Links.Naukri, "naukri.com/")

	history := env.server.store.JobHistory()
	require.NotEmpty(t, history)
	assert.Equal(t, "Backend Engineer", history[0].Title)
	assert.Equal(t, "Multiple Job Sites", history[0].Company)
}

func TestHistoryDeleteAndExport(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Ada", "ada@example.com", "password123")

	rec := env.do(t, http.MethodPost, "/analyze", token, AnalyzeRequest{ResumeText: "Ada Lovelace"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/cover-letter", token, CoverLetterRequest{
		JobTitle: "Backend Engineer", Company: "Acme",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing map[string][]types.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing["job_history"], 1)
	job := listing["job_history"][0]

	rec = env.do(t, http.MethodGet, "/history/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Job Title,Company,Date,Link", lines[0])
	assert.Contains(t, lines[1], "Backend Engineer,Acme")

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/history/%s", job.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.server.store.JobHistory())

	// Deleting again is still a success
	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/history/%s", job.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUpdatePassword(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Ada", "ada@example.com", "password123")

	rec := env.do(t, http.MethodPut, "/auth/password", token, types.UpdatePasswordRequest{
		CurrentPassword: "password123", NewPassword: "password456",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/auth/login", "", types.LoginRequest{
		Email: "ada@example.com", Password: "password456",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdatePasswordWrongCurrent(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Ada", "ada@example.com", "password123")

	rec := env.do(t, http.MethodPut, "/auth/password", token, types.UpdatePasswordRequest{
		CurrentPassword: "wrong", NewPassword: "password456",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSetupModeServesInstructions(t *testing.T) {
	s := &Server{setupStatus: &config.Status{Missing: []string{config.EnvGeminiAPIKey}}}
	handler := s.setupRouter()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "configuration_incomplete", body["error"])

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
