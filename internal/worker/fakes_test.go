package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"arforge/internal/gateway"
	"arforge/internal/models"
	"arforge/internal/store"
)

// --- Gateway fake ---

type statusStep struct {
	res *gateway.StatusResult
	err error
}

type fakeGateway struct {
	mu        sync.Mutex
	steps     []statusStep
	calls     int
	submitID  string
	submitErr error
}

func (g *fakeGateway) Submit(ctx context.Context, req gateway.SubmitRequest) (string, error) {
	if g.submitErr != nil {
		return "", g.submitErr
	}
	return g.submitID, nil
}

func (g *fakeGateway) GetStatus(ctx context.Context, taskID string) (*gateway.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls >= len(g.steps) {
		return nil, fmt.Errorf("unexpected poll %d for task %s", g.calls, taskID)
	}
	step := g.steps[g.calls]
	g.calls++
	return step.res, step.err
}

func statusResult(status models.TaskStatus, progress int) *gateway.StatusResult {
	raw, _ := json.Marshal(map[string]any{"status": string(status), "progress": progress})
	return &gateway.StatusResult{
		Status:    status,
		RawStatus: string(status),
		Progress:  progress,
		Raw:       raw,
	}
}

// --- Task store fake ---

type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*models.GenerationTask
	polls int
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[string]*models.GenerationTask)}
}

func (s *fakeTaskStore) CreateTask(ctx context.Context, task *models.GenerationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.TaskID]; ok {
		return store.ErrDuplicate
	}
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	s.tasks[task.TaskID] = task
	return nil
}

func (s *fakeTaskStore) GetTaskByTaskID(ctx context.Context, taskID string) (*models.GenerationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return task, nil
}

func (s *fakeTaskStore) ListTasks(ctx context.Context, limit, offset int) ([]*models.GenerationTask, error) {
	return nil, nil
}

func (s *fakeTaskStore) ListTasksByProduct(ctx context.Context, productID int64, limit, offset int) ([]*models.GenerationTask, error) {
	return nil, nil
}

func (s *fakeTaskStore) RecordPoll(ctx context.Context, taskID string, status models.TaskStatus, progress int, lastResponse json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return store.ErrNotFound
	}
	if task.Status.IsTerminal() {
		return store.ErrTerminal
	}
	s.polls++
	task.Status = status
	task.Progress = models.ClampProgress(progress)
	task.LastResponse = lastResponse
	task.UpdatedAt = time.Now()
	return nil
}

func (s *fakeTaskStore) MarkTerminal(ctx context.Context, taskID string, status models.TaskStatus, errMsg string, lastResponse json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return store.ErrNotFound
	}
	if task.Status.IsTerminal() {
		return store.ErrTerminal
	}
	task.Status = status
	task.ErrorMessage = &errMsg
	if lastResponse != nil {
		task.LastResponse = lastResponse
	}
	task.UpdatedAt = time.Now()
	return nil
}

// --- Product store fake ---

type fakeProductStore struct {
	mu       sync.Mutex
	products map[int64]*models.Product
	phases   []string
}

func newFakeProductStore(products ...*models.Product) *fakeProductStore {
	s := &fakeProductStore{products: make(map[int64]*models.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *fakeProductStore) CreateProduct(ctx context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
	return nil
}

func (s *fakeProductStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (s *fakeProductStore) ListProducts(ctx context.Context, limit, offset int) ([]*models.Product, error) {
	return nil, nil
}

func (s *fakeProductStore) SetGenerationPhase(ctx context.Context, productID int64, phase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	p.ModelGenerationStatus = phase
	s.phases = append(s.phases, phase)
	return nil
}

func (s *fakeProductStore) Ping(ctx context.Context) error { return nil }

func (s *fakeProductStore) phase(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		return p.ModelGenerationStatus
	}
	return ""
}

// --- Job client fake ---

type enqueuedPoll struct {
	productID int64
	taskID    string
	delay     time.Duration
}

type enqueuedDownload struct {
	productID  int64
	taskID     string
	modelURL   string
	previewURL string
}

type fakeJobClient struct {
	mu         sync.Mutex
	submits    []int64
	polls      []enqueuedPoll
	downloads  []enqueuedDownload
	enqueueErr error
}

func (jc *fakeJobClient) EnqueueSubmit(ctx context.Context, productID int64) error {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	jc.submits = append(jc.submits, productID)
	return jc.enqueueErr
}

func (jc *fakeJobClient) EnqueuePoll(ctx context.Context, productID int64, taskID string, delay time.Duration) error {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	if jc.enqueueErr != nil {
		return jc.enqueueErr
	}
	jc.polls = append(jc.polls, enqueuedPoll{productID: productID, taskID: taskID, delay: delay})
	return nil
}

func (jc *fakeJobClient) EnqueueDownload(ctx context.Context, productID int64, taskID, modelURL, previewURL string) error {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	if jc.enqueueErr != nil {
		return jc.enqueueErr
	}
	jc.downloads = append(jc.downloads, enqueuedDownload{
		productID:  productID,
		taskID:     taskID,
		modelURL:   modelURL,
		previewURL: previewURL,
	})
	return nil
}

func (jc *fakeJobClient) Close() error { return nil }

// --- Notifier fake ---

type notification struct {
	productID int64
	modelURL  string
	errMsg    string
	failed    bool
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *fakeNotifier) PublishModelReady(ctx context.Context, productID int64, modelURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{productID: productID, modelURL: modelURL})
	return nil
}

func (n *fakeNotifier) PublishModelFailed(ctx context.Context, productID int64, errMsg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{productID: productID, errMsg: errMsg, failed: true})
	return nil
}

func (n *fakeNotifier) Close() error { return nil }

// --- Download committer fake ---

type downloadCommit struct {
	taskID    string
	productID int64
	localPath string
	assetURL  string
}

type fakeCommitter struct {
	mu        sync.Mutex
	commits   []downloadCommit
	phases    []string
	commitErr error
}

func (c *fakeCommitter) CommitDownload(ctx context.Context, taskID string, productID int64, localPath, assetURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.commitErr != nil {
		return c.commitErr
	}
	c.commits = append(c.commits, downloadCommit{
		taskID:    taskID,
		productID: productID,
		localPath: localPath,
		assetURL:  assetURL,
	})
	c.phases = append(c.phases, models.GenerationPhaseCompleted)
	return nil
}

func (c *fakeCommitter) SetGenerationPhase(ctx context.Context, productID int64, phase string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phases = append(c.phases, phase)
	return nil
}

func (c *fakeCommitter) lastPhase() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.phases) == 0 {
		return ""
	}
	return c.phases[len(c.phases)-1]
}

// retryCountFunc builds the injectable substrate counter for tests.
func retryCountFunc(n int) func(context.Context) (int, bool) {
	return func(context.Context) (int, bool) { return n, true }
}
