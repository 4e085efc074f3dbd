package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/taskforge/platform/pkg/apperr"
)

// Memory is an in-process Artifact Store double for tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	jsonPutter
}

// NewMemory builds an empty in-process Artifact Store.
func NewMemory() *Memory {
	m := &Memory{objects: map[string][]byte{}}
	m.jsonPutter = jsonPutter{put: m.Put}
	return m
}

func (m *Memory) Put(_ context.Context, key string, data io.Reader, _ string) (string, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("artifacts: read body for %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = raw
	return fmt.Sprintf("s3://memory/%s", key), nil
}

func (m *Memory) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("artifacts: get %s: %w", key, apperr.NotFound)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
		}
	}
	return nil
}

func (m *Memory) ListPrefixes(_ context.Context, root string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]bool{}
	var prefixes []string
	for key := range m.objects {
		rest, ok := strings.CutPrefix(key, root)
		if !ok {
			continue
		}
		segment, _, _ := strings.Cut(rest, "/")
		if segment == "" || seen[segment] {
			continue
		}
		seen[segment] = true
		prefixes = append(prefixes, segment)
	}
	return prefixes, nil
}

// Keys returns every currently-stored key, for test assertions.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
