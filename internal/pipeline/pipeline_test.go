package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vibenavd/internal/docstore"
	"github.com/fyrsmithlabs/vibenavd/internal/genai"
	"github.com/fyrsmithlabs/vibenavd/internal/model"
	"github.com/fyrsmithlabs/vibenavd/internal/vectorstore"
)

// mockStore is an in-memory docstore.Store.
type mockStore struct {
	mu        sync.Mutex
	locations map[string]*model.Location
	nextID    int

	upsertErr      error
	setAnalysisErr error
	listErr        error
}

func newMockStore() *mockStore {
	return &mockStore{locations: make(map[string]*model.Location)}
}

func (m *mockStore) UpsertByNaturalKey(_ context.Context, loc *model.Location) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return "", false, m.upsertErr
	}

	for id, existing := range m.locations {
		if existing.Name == loc.Name && strings.EqualFold(existing.City, loc.City) {
			updated := *loc
			updated.ID = id
			updated.AIAnalysis = existing.AIAnalysis
			m.locations[id] = &updated
			return id, false, nil
		}
	}

	m.nextID++
	id := fmt.Sprintf("loc-%d", m.nextID)
	created := *loc
	created.ID = id
	m.locations[id] = &created
	return id, true, nil
}

func (m *mockStore) Get(_ context.Context, id string) (*model.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.locations[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	cp := *loc
	return &cp, nil
}

func (m *mockStore) List(_ context.Context, find docstore.Find) ([]*model.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}

	var out []*model.Location
	if len(find.IDs) > 0 {
		for _, id := range find.IDs {
			if loc, ok := m.locations[id]; ok {
				cp := *loc
				out = append(out, &cp)
			}
		}
		return out, nil
	}
	for _, loc := range m.locations {
		if find.MissingAnalysis && loc.AIAnalysis != nil {
			continue
		}
		if find.City != "" && loc.City != find.City {
			continue
		}
		cp := *loc
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockStore) SetAnalysis(_ context.Context, id string, analysis model.AIAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setAnalysisErr != nil {
		return m.setAnalysisErr
	}
	loc, ok := m.locations[id]
	if !ok {
		return docstore.ErrNotFound
	}
	loc.AIAnalysis = &analysis
	loc.ProcessingStatus = model.StatusAnalyzed
	return nil
}

func (m *mockStore) SetStatus(_ context.Context, ids []string, status model.ProcessingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if loc, ok := m.locations[id]; ok {
			loc.ProcessingStatus = status
		}
	}
	return nil
}

func (m *mockStore) Close() error { return nil }

// mockIndex records upserted vector records.
type mockIndex struct {
	mu        sync.Mutex
	records   map[string]vectorstore.Record
	upserts   int
	upsertErr error
	queryErr  error
	matches   []vectorstore.Match
}

func newMockIndex() *mockIndex {
	return &mockIndex{records: make(map[string]vectorstore.Record)}
}

func (m *mockIndex) Upsert(_ context.Context, records []vectorstore.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

func (m *mockIndex) Query(_ context.Context, _ []float32, _ int, _ map[string]interface{}) ([]vectorstore.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.matches, nil
}

func (m *mockIndex) EnsureCollection(context.Context) error { return nil }
func (m *mockIndex) Close() error                           { return nil }

// mockGeneration replays canned completions and records prompts.
type mockGeneration struct {
	mu      sync.Mutex
	prompts []string

	// respond picks a reply for a prompt. Defaults to a valid map reply
	// and a valid reduce reply.
	respond func(prompt string) (string, error)
}

func (m *mockGeneration) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	respond := m.respond
	m.mu.Unlock()
	if respond != nil {
		return respond(prompt)
	}
	if strings.Contains(prompt, "valid JSON object") {
		return `{"vibe_summary": "Chill place.", "vibe_tags": ["chill", "cozy"], "emojis": "✨☕🌿"}`, nil
	}
	return "- great coffee\n- cozy corners", nil
}

func (m *mockGeneration) Chat(_ context.Context, _ string, _ []genai.Message, _ string) (string, error) {
	return "", errors.New("not used")
}

func (m *mockGeneration) mapCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.prompts {
		if strings.Contains(p, "Key points from this batch:") {
			n++
		}
	}
	return n
}

func (m *mockGeneration) reduceCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.prompts {
		if strings.Contains(p, "valid JSON object") {
			n++
		}
	}
	return n
}

// mockEmbedding returns one fixed-size vector per input text.
type mockEmbedding struct {
	mu      sync.Mutex
	batches [][]string
	err     error
	dim     int
}

func (m *mockEmbedding) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	dim := m.dim
	if dim == 0 {
		dim = 4
	}
	m.batches = append(m.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dim)
	}
	return out, nil
}

func (m *mockEmbedding) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vs, err := m.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

// recordingDispatcher captures published tasks without running them.
type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []Task
}

func (d *recordingDispatcher) Publish(_ context.Context, task Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, task)
	return nil
}

func (d *recordingDispatcher) Start(Handler) error { return nil }
func (d *recordingDispatcher) Close() error        { return nil }

func (d *recordingDispatcher) published() []Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Task(nil), d.tasks...)
}

type testDeps struct {
	store      *mockStore
	index      *mockIndex
	generation *mockGeneration
	embedding  *mockEmbedding
	dispatcher *recordingDispatcher
	svc        *Service
}

func newTestService(t *testing.T) *testDeps {
	t.Helper()
	deps := &testDeps{
		store:      newMockStore(),
		index:      newMockIndex(),
		generation: &mockGeneration{},
		embedding:  &mockEmbedding{},
		dispatcher: &recordingDispatcher{},
	}

	svc, err := NewService(deps.store, deps.index, deps.generation, deps.embedding, deps.dispatcher, Config{}, nil)
	require.NoError(t, err)
	deps.svc = svc
	return deps
}
