// Package remote downloads the static resources a run needs (WakaTime
// summaries, the linguist colour table, contribution counts). Downloads are
// launched together up front and awaited when first read.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"wakareadme/internal/debug"
	"wakareadme/internal/metrics"
)

var (
	// ErrUnknownResource is returned when reading a resource that was never loaded.
	ErrUnknownResource = errors.New("unknown remote resource")

	// ErrNotReady is returned for 201/202 answers: the upstream is still
	// computing the resource.
	ErrNotReady = errors.New("remote resource not ready")
)

// StatusError is a non-2xx answer.
type StatusError struct {
	Resource string
	URL      string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("query '%s' (%s) failed to run by returning code of %d: %s", e.Resource, e.URL, e.Status, e.Body)
}

type download struct {
	url    string
	done   chan struct{}
	status int
	body   []byte
	err    error
}

// Loader caches one response per named resource.
type Loader struct {
	client  *http.Client
	log     *debug.Logger
	metrics *metrics.Recorder

	mu        sync.Mutex
	downloads map[string]*download
	group     errgroup.Group
	cancel    context.CancelFunc
}

func NewLoader(client *http.Client, log *debug.Logger, rec *metrics.Recorder) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{
		client:    client,
		log:       log,
		metrics:   rec,
		downloads: make(map[string]*download),
		cancel:    func() {},
	}
}

// Load starts downloading every resource (name -> URL) in the background.
// Loading a name twice keeps the first download.
func (l *Loader) Load(ctx context.Context, resources map[string]string) {
	ctx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	prev := l.cancel
	l.cancel = func() { prev(); cancel() }
	for name, url := range resources {
		if _, ok := l.downloads[name]; ok {
			continue
		}
		d := &download{url: url, done: make(chan struct{})}
		l.downloads[name] = d
		l.group.Go(func() error {
			l.fetch(ctx, name, d)
			return nil
		})
	}
	l.mu.Unlock()
}

// Close cancels downloads nobody waited for and waits for them to return.
func (l *Loader) Close() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	cancel()
	_ = l.group.Wait()
}

func (l *Loader) fetch(ctx context.Context, name string, d *download) {
	defer close(d.done)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		d.err = err
		return
	}
	resp, err := l.client.Do(req)
	if err != nil {
		d.err = fmt.Errorf("query '%s' failed: %w", name, err)
		return
	}
	defer resp.Body.Close()

	d.status = resp.StatusCode
	d.body, d.err = io.ReadAll(resp.Body)
	l.metrics.ObserveRequest(name, resp.StatusCode)
}

// Raw waits for the named resource and returns its body.
func (l *Loader) Raw(ctx context.Context, name string) ([]byte, error) {
	l.mu.Lock()
	d, ok := l.downloads[name]
	l.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownResource)
	}

	l.log.Info("\tMaking a remote API query named '%s'...", name)
	select {
	case <-d.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	l.log.Good("\tQuery '%s' finished, result saved!", name)

	if d.err != nil {
		return nil, d.err
	}
	switch d.status {
	case http.StatusOK:
		return d.body, nil
	case http.StatusCreated, http.StatusAccepted:
		l.log.Warn("\tQuery '%s' returned %d status code", name, d.status)
		return nil, ErrNotReady
	default:
		return nil, &StatusError{Resource: name, URL: d.url, Status: d.status, Body: string(d.body)}
	}
}

// JSON decodes the named resource into v.
func (l *Loader) JSON(ctx context.Context, name string, v any) error {
	body, err := l.Raw(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode '%s': %w", name, err)
	}
	return nil
}

// YAML decodes the named resource into v.
func (l *Loader) YAML(ctx context.Context, name string, v any) error {
	body, err := l.Raw(ctx, name)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode '%s': %w", name, err)
	}
	return nil
}
