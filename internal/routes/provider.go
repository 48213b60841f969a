package routes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/Asadp3406/bus-tracking/pkg/log"
)

// ReloadFunc is called with the new topology after a successful reload.
type ReloadFunc func(*Topology)

// Provider owns the current topology and keeps it in sync with the file on
// disk. A broken edit never replaces a working topology; the provider logs
// the parse error and keeps serving the previous version.
type Provider struct {
	path string

	mu         sync.RWMutex
	current    *Topology
	onReload   []ReloadFunc
	generation uint64
}

// NewProvider loads the topology file and returns a provider serving it.
func NewProvider(path string) (*Provider, error) {
	p := &Provider{path: path}
	topo, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	p.current = topo
	return p, nil
}

func loadFile(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route topology: %w", err)
	}
	return Parse(data)
}

// Parse builds a topology from YAML bytes.
func Parse(data []byte) (*Topology, error) {
	var file topologyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse route topology: %w", err)
	}
	return newTopology(file)
}

// Snapshot returns the current topology. The returned value is immutable and
// remains valid after later reloads.
func (p *Provider) Snapshot() *Topology {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// OnReload registers fn to run after every successful reload. Registrations
// must happen before Watch starts.
func (p *Provider) OnReload(fn ReloadFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onReload = append(p.onReload, fn)
}

// Generation returns how many reloads have been applied.
func (p *Provider) Generation() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.generation
}

// Reload re-reads the file and swaps in the new topology.
func (p *Provider) Reload() error {
	topo, err := loadFile(p.path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.current = topo
	p.generation++
	callbacks := make([]ReloadFunc, len(p.onReload))
	copy(callbacks, p.onReload)
	p.mu.Unlock()

	for _, fn := range callbacks {
		fn(topo)
	}
	log.Info("route topology reloaded", "path", p.path, "routes", len(topo.routes))
	return nil
}

// Watch blocks until ctx is done, reloading the topology whenever the file
// changes. The parent directory is watched rather than the file itself so
// editors that replace the file by rename keep triggering reloads.
func (p *Provider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create topology watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(p.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := p.Reload(); err != nil {
				log.Error(err, "route topology reload failed, keeping previous version", "path", p.path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error(err, "route topology watcher error")
		}
	}
}
