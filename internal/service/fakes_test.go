package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/repository"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/jobs"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/storage"
)

type passTx struct {
	calls int
}

func (p *passTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

// mockUserRepo is an in-memory user table.
type mockUserRepo struct {
	mu          sync.Mutex
	users       map[string]*models.User
	findByIDErr error
	createErr   error
	listFilter  models.UserFilter
}

func newMockUserRepo(users ...models.User) *mockUserRepo {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	for i := range users {
		u := users[i]
		repo.users[u.ID] = &u
	}
	return repo
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if u, ok := m.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listFilter = filter
	var users []models.User
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, len(users), nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.users[user.ID]; exists {
		return sql.ErrNoRows
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, id string, role models.UserRole) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.Role == models.RoleDean {
		return nil, sql.ErrNoRows
	}
	u.Role = role
	copy := *u
	return &copy, nil
}

func (m *mockUserRepo) SetActive(ctx context.Context, id string, active bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.Role == models.RoleDean {
		return nil, sql.ErrNoRows
	}
	u.IsActive = active
	copy := *u
	return &copy, nil
}

func (m *mockUserRepo) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, u := range m.users {
		if u.Role == role {
			total++
		}
	}
	return total, nil
}

// mockAudit collects audit entries.
type mockAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
	err     error
}

func (m *mockAudit) Record(ctx context.Context, entry models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAudit) RecordBestEffort(ctx context.Context, entry models.AuditEntry) {
	_ = m.Record(ctx, entry)
}

func (m *mockAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

// mockPaperRepo is an in-memory papers table honouring the conditional writes.
type mockPaperRepo struct {
	mu        sync.Mutex
	papers    map[string]*models.Paper
	authors   map[string][]models.PaperAuthor
	createErr error
	setURLErr error
	lastList  models.PaperFilter
	// beforeUpdate runs inside UpdateStatus before the condition is checked.
	beforeUpdate func(p *models.Paper)
}

func newMockPaperRepo(papers ...models.Paper) *mockPaperRepo {
	repo := &mockPaperRepo{papers: make(map[string]*models.Paper), authors: make(map[string][]models.PaperAuthor)}
	for i := range papers {
		p := papers[i]
		repo.papers[p.ID] = &p
		if len(p.Authors) > 0 {
			repo.authors[p.ID] = p.Authors
		}
	}
	return repo
}

func (m *mockPaperRepo) Create(ctx context.Context, paper *models.Paper) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	copy := *paper
	copy.Authors = nil
	m.papers[paper.ID] = &copy
	m.authors[paper.ID] = append([]models.PaperAuthor(nil), paper.Authors...)
	return nil
}

func (m *mockPaperRepo) FindByID(ctx context.Context, id string) (*models.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.papers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *p
	return &copy, nil
}

func (m *mockPaperRepo) ListAuthors(ctx context.Context, paperID string) ([]models.PaperAuthor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PaperAuthor(nil), m.authors[paperID]...), nil
}

func (m *mockPaperRepo) List(ctx context.Context, filter models.PaperFilter) ([]models.Paper, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastList = filter
	var out []models.Paper
	for _, p := range m.papers {
		if filter.SubmittedBy != "" && p.SubmittedBy != filter.SubmittedBy {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *mockPaperRepo) SetRawFileURL(ctx context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setURLErr != nil {
		return m.setURLErr
	}
	p, ok := m.papers[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.RawFileURL = url
	return nil
}

func (m *mockPaperRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.papers[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.papers, id)
	delete(m.authors, id)
	return nil
}

func sameDOI(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *mockPaperRepo) UpdateStatus(ctx context.Context, upd repository.StatusUpdate) (*models.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.papers[upd.ID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(p)
	}
	if p.Status != upd.From || !sameDOI(p.DOI, upd.ExpectedDOI) {
		return nil, sql.ErrNoRows
	}
	p.Status = upd.To
	if upd.DOI != nil {
		doi := *upd.DOI
		p.DOI = &doi
	}
	if upd.PublishedAt != nil {
		at := *upd.PublishedAt
		p.PublishedAt = &at
	}
	copy := *p
	return &copy, nil
}

func (m *mockPaperRepo) SetDOI(ctx context.Context, id, doi string) (*models.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.papers[id]
	if !ok || p.DOI != nil {
		return nil, sql.ErrNoRows
	}
	p.DOI = &doi
	copy := *p
	return &copy, nil
}

func (m *mockPaperRepo) RevokeDOI(ctx context.Context, id, doi string) (*models.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.papers[id]
	if !ok || p.DOI == nil || *p.DOI != doi {
		return nil, sql.ErrNoRows
	}
	p.DOI = nil
	p.PublishedAt = nil
	p.Status = models.PaperStatusRejected
	copy := *p
	return &copy, nil
}

func (m *mockPaperRepo) get(id string) *models.Paper {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.papers[id]; ok {
		copy := *p
		return &copy
	}
	return nil
}

// mockSequence hands out per-year serials like the doi_sequences upsert.
type mockSequence struct {
	mu     sync.Mutex
	counts map[int]int
	err    error
}

func (m *mockSequence) Next(ctx context.Context, year int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if m.counts == nil {
		m.counts = make(map[int]int)
	}
	m.counts[year]++
	return m.counts[year], nil
}

func (m *mockSequence) current(year int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[year]
}

// mockStorage keeps uploaded objects in memory and serves them from mem://.
type mockStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleted   []string
}

func newMockStorage() *mockStorage {
	return &mockStorage{objects: make(map[string][]byte)}
}

func (m *mockStorage) Upload(ctx context.Context, r io.Reader, objectPath string, opts storage.UploadOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	if _, exists := m.objects[objectPath]; exists && !opts.Upsert {
		return "", storage.ErrObjectExists
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	m.objects[objectPath] = buf.Bytes()
	return "mem://" + objectPath, nil
}

func (m *mockStorage) Delete(ctx context.Context, objectPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectPath)
	m.deleted = append(m.deleted, objectPath)
	return nil
}

func (m *mockStorage) ObjectPath(publicURL string) (string, bool) {
	if !strings.HasPrefix(publicURL, "mem://") {
		return "", false
	}
	return strings.TrimPrefix(publicURL, "mem://"), true
}

func (m *mockStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// mockNotifier records enqueued notifications.
type mockNotifier struct {
	mu   sync.Mutex
	sent []models.StatusChangeNotification
	err  error
}

func (m *mockNotifier) NotifyStatusChange(ctx context.Context, n models.StatusChangeNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n)
	return nil
}

// mockQueue captures jobs instead of running workers.
type mockQueue struct {
	jobs []jobs.Job
	err  error
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func strPtr(s string) *string { return &s }

var (
	testAuthor   = models.User{ID: "author-1", Email: "author@isufst.edu.ph", FullName: "Ana Author", Role: models.RoleAuthor, IsActive: true}
	testReviewer = models.User{ID: "reviewer-1", Email: "reviewer@isufst.edu.ph", Role: models.RoleReviewer, IsActive: true}
	testEditor   = models.User{ID: "editor-1", Email: "editor@isufst.edu.ph", Role: models.RoleEditor, IsActive: true}
	testDean     = models.User{ID: "dean-1", Email: "dean@isufst.edu.ph", Role: models.RoleDean, IsActive: true}
)

func defaultUsers() *mockUserRepo {
	return newMockUserRepo(testAuthor, testReviewer, testEditor, testDean)
}
