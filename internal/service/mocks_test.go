package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/CodeAtlas/internal/domain"
	"github.com/Strob0t/CodeAtlas/internal/domain/analysis"
	"github.com/Strob0t/CodeAtlas/internal/domain/repository"
	"github.com/Strob0t/CodeAtlas/internal/domain/wiki"
	"github.com/Strob0t/CodeAtlas/internal/port/database"
	"github.com/Strob0t/CodeAtlas/internal/port/messagequeue"
	"github.com/Strob0t/CodeAtlas/internal/port/reposource"
)

var (
	_ database.Store     = (*mockStore)(nil)
	_ messagequeue.Queue = (*mockQueue)(nil)
	_ reposource.Source  = (*mockSource)(nil)
)

// --- mock store ---

type mockStore struct {
	mu    sync.Mutex
	repos []repository.Repository
	jobs  []analysis.Job
	subs  []analysis.Subsystem
	pages []wiki.Page

	// progressLog records every progress value a job reached, in order.
	progressLog map[string][]int

	upsertPageErr error
}

func (m *mockStore) ListRepositories(_ context.Context) ([]repository.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repository.Repository{}, m.repos...), nil
}

func (m *mockStore) GetRepository(_ context.Context, id string) (*repository.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.repos {
		if m.repos[i].ID == id {
			r := m.repos[i]
			return &r, nil
		}
	}
	return nil, fmt.Errorf("get repository %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) GetRepositoryByURL(_ context.Context, url string) (*repository.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.repos {
		if m.repos[i].URL == url {
			r := m.repos[i]
			return &r, nil
		}
	}
	return nil, fmt.Errorf("get repository by url %s: %w", url, domain.ErrNotFound)
}

func (m *mockStore) CreateRepository(_ context.Context, repo repository.Repository) (*repository.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo.ID = fmt.Sprintf("repo-%d", len(m.repos)+1)
	repo.CreatedAt = time.Now()
	repo.UpdatedAt = repo.CreatedAt
	m.repos = append(m.repos, repo)
	r := repo
	return &r, nil
}

func (m *mockStore) UpdateRepositoryMeta(_ context.Context, id, description, primaryLanguage string, stars int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.repos {
		if m.repos[i].ID == id {
			m.repos[i].Description = description
			m.repos[i].PrimaryLanguage = primaryLanguage
			m.repos[i].Stars = stars
			return nil
		}
	}
	return fmt.Errorf("update repository meta %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) MarkRepositoryAnalyzed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.repos {
		if m.repos[i].ID == id {
			now := time.Now()
			m.repos[i].AnalyzedAt = &now
			return nil
		}
	}
	return fmt.Errorf("mark repository analyzed %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) CreateJob(_ context.Context, job analysis.Job) (*analysis.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Status = analysis.StatusPending
	job.Progress = 0
	job.CreatedAt = time.Now()
	m.jobs = append(m.jobs, job)
	j := job
	return &j, nil
}

func (m *mockStore) GetJob(_ context.Context, id string) (*analysis.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.jobs {
		if m.jobs[i].ID == id {
			j := m.jobs[i]
			return &j, nil
		}
	}
	return nil, fmt.Errorf("get job %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) StartJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.jobs {
		if m.jobs[i].ID == id {
			if m.jobs[i].Status != analysis.StatusPending {
				return fmt.Errorf("start job %s: %w", id, domain.ErrConflict)
			}
			m.jobs[i].Status = analysis.StatusInProgress
			if m.jobs[i].Progress < analysis.ProgressPickedUp {
				m.jobs[i].Progress = analysis.ProgressPickedUp
			}
			now := time.Now()
			m.jobs[i].StartedAt = &now
			m.logProgress(id, m.jobs[i].Progress)
			return nil
		}
	}
	return fmt.Errorf("start job %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) UpdateJobProgress(_ context.Context, id string, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.jobs {
		if m.jobs[i].ID == id {
			if m.jobs[i].Status != analysis.StatusInProgress {
				return fmt.Errorf("update job progress %s: %w", id, domain.ErrConflict)
			}
			if progress > m.jobs[i].Progress {
				m.jobs[i].Progress = progress
			}
			m.logProgress(id, m.jobs[i].Progress)
			return nil
		}
	}
	return fmt.Errorf("update job progress %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) CompleteJob(_ context.Context, id string, result analysis.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.jobs {
		if m.jobs[i].ID == id {
			if m.jobs[i].Status != analysis.StatusInProgress {
				return fmt.Errorf("complete job %s: %w", id, domain.ErrConflict)
			}
			m.jobs[i].Status = analysis.StatusCompleted
			m.jobs[i].Progress = 100
			r := result
			m.jobs[i].Result = &r
			now := time.Now()
			m.jobs[i].CompletedAt = &now
			m.logProgress(id, 100)
			return nil
		}
	}
	return fmt.Errorf("complete job %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) FailJob(_ context.Context, id string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.jobs {
		if m.jobs[i].ID == id {
			if m.jobs[i].Status.Terminal() {
				return fmt.Errorf("fail job %s: %w", id, domain.ErrConflict)
			}
			m.jobs[i].Status = analysis.StatusFailed
			m.jobs[i].Error = errMsg
			now := time.Now()
			m.jobs[i].CompletedAt = &now
			return nil
		}
	}
	return fmt.Errorf("fail job %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) ListSubsystems(_ context.Context, repositoryID string) ([]analysis.Subsystem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []analysis.Subsystem
	for i := range m.subs {
		if m.subs[i].RepositoryID == repositoryID {
			out = append(out, m.subs[i])
		}
	}
	return out, nil
}

func (m *mockStore) CreateSubsystem(_ context.Context, sub analysis.Subsystem) (*analysis.Subsystem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub.ID = fmt.Sprintf("sub-%d", len(m.subs)+1)
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt
	m.subs = append(m.subs, sub)
	s := sub
	return &s, nil
}

func (m *mockStore) UpdateSubsystem(_ context.Context, sub analysis.Subsystem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.subs {
		if m.subs[i].ID == sub.ID {
			created := m.subs[i].CreatedAt
			m.subs[i] = sub
			m.subs[i].CreatedAt = created
			m.subs[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("update subsystem %s: %w", sub.ID, domain.ErrNotFound)
}

func (m *mockStore) ListWikiPages(_ context.Context, repositoryID string) ([]wiki.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []wiki.Page
	for i := range m.pages {
		if m.pages[i].RepositoryID == repositoryID {
			out = append(out, m.pages[i])
		}
	}
	return out, nil
}

func (m *mockStore) GetWikiPageBySubsystem(_ context.Context, subsystemID string) (*wiki.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.pages {
		if m.pages[i].SubsystemID == subsystemID {
			p := m.pages[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("get wiki page for subsystem %s: %w", subsystemID, domain.ErrNotFound)
}

func (m *mockStore) UpsertWikiPage(_ context.Context, page wiki.Page) (*wiki.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertPageErr != nil {
		return nil, m.upsertPageErr
	}
	for i := range m.pages {
		if m.pages[i].SubsystemID == page.SubsystemID {
			page.ID = m.pages[i].ID
			page.CreatedAt = m.pages[i].CreatedAt
			page.UpdatedAt = time.Now()
			m.pages[i] = page
			p := page
			return &p, nil
		}
	}
	page.ID = fmt.Sprintf("page-%d", len(m.pages)+1)
	page.CreatedAt = time.Now()
	page.UpdatedAt = page.CreatedAt
	m.pages = append(m.pages, page)
	p := page
	return &p, nil
}

func (m *mockStore) CountWikiPages(_ context.Context, repositoryID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for i := range m.pages {
		if m.pages[i].RepositoryID == repositoryID {
			count++
		}
	}
	return count, nil
}

func (m *mockStore) logProgress(jobID string, progress int) {
	if m.progressLog == nil {
		m.progressLog = make(map[string][]int)
	}
	m.progressLog[jobID] = append(m.progressLog[jobID], progress)
}

// --- mock queue ---

type publishedMsg struct {
	Subject string
	Data    []byte
}

type mockQueue struct {
	mu       sync.Mutex
	messages []publishedMsg
}

func (m *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, publishedMsg{Subject: subject, Data: data})
	return nil
}

func (m *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}
func (m *mockQueue) Drain() error      { return nil }
func (m *mockQueue) Close() error      { return nil }
func (m *mockQueue) IsConnected() bool { return true }

func (m *mockQueue) published() []publishedMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishedMsg{}, m.messages...)
}

// --- mock repo source ---

type mockSource struct {
	mu       sync.Mutex
	info     reposource.RepoInfo
	files    []reposource.FileInfo
	contents map[string]string

	infoErr    error
	listErr    error
	contentErr map[string]error

	contentCalls int
}

func (m *mockSource) GetRepoInfo(_ context.Context, _, _ string) (*reposource.RepoInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.infoErr != nil {
		return nil, m.infoErr
	}
	info := m.info
	return &info, nil
}

func (m *mockSource) ListFiles(_ context.Context, _, _ string) ([]reposource.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]reposource.FileInfo{}, m.files...), nil
}

func (m *mockSource) GetFileContent(_ context.Context, _, _, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contentCalls++
	if err, ok := m.contentErr[path]; ok {
		return "", err
	}
	content, ok := m.contents[path]
	if !ok {
		return "", fmt.Errorf("get file content %s: %w", path, domain.ErrNotFound)
	}
	return content, nil
}

// --- mock LLM server ---

// newMockLLMServer creates a test server that returns a completion response
// with the given body for every request.
func newMockLLMServer(t *testing.T, responseBody string) *httptest.Server {
	t.Helper()
	return newRoutedLLMServer(t, func(string) string { return responseBody })
}

// newRoutedLLMServer creates a test server that picks the completion body
// per request based on the serialized request. Routing on request content
// keeps responses deterministic under concurrent generation.
func newRoutedLLMServer(t *testing.T, route func(requestBody string) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqBody, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": route(string(reqBody))}},
			},
			"usage": map[string]int{"prompt_tokens": 50, "completion_tokens": 100},
			"model": "gpt-4o-mini",
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}
