// Package registry keeps the node factories the host can instantiate.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"plugin"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/comfyflow/pkg/models"
	"github.com/dukex/comfyflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

var ErrNodeNotRegistered = errors.New("node type not registered")

// ConfigError lists the schema violations of a node configuration.
type ConfigError struct {
	NodeType string
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for node type '%s': %s", e.NodeType, strings.Join(e.Problems, "; "))
}

// NodeInfo describes a registered node type.
type NodeInfo struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

type Registry struct {
	logger        *slog.Logger
	mu            sync.RWMutex
	nodeFactories map[string]protocol.NodeFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:        log.With("module", "registry"),
		nodeFactories: make(map[string]protocol.NodeFactory),
	}
}

// RegisterNode adds factory, replacing any factory with the same ID.
func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nodeFactories[factory.ID()] = factory
	r.logger.Debug("Registered node", "type", factory.ID())
}

func (r *Registry) Get(nodeType string) (protocol.NodeFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.nodeFactories[nodeType]

	return factory, ok
}

// CreateNode validates config against the factory schema and builds the node.
func (r *Registry) CreateNode(ctx context.Context, nodeType, id string, config map[string]any) (models.Node, error) {
	factory, ok := r.Get(nodeType)
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrNodeNotRegistered, nodeType)
	}

	if config == nil {
		config = map[string]any{}
	}

	if err := validateConfig(nodeType, factory.Schema(), config); err != nil {
		return nil, err
	}

	return factory.Create(ctx, id, config)
}

// ListNodes returns the registered node types ordered by ID.
func (r *Registry) ListNodes() []NodeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]NodeInfo, 0, len(r.nodeFactories))
	for _, id := range slices.Sorted(maps.Keys(r.nodeFactories)) {
		factory := r.nodeFactories[id]
		infos = append(infos, NodeInfo{
			ID:          id,
			Name:        factory.Name(),
			Description: factory.Description(),
			Schema:      factory.Schema(),
		})
	}

	return infos
}

// LoadNodePlugins opens every nodes/**/*.so under pluginsPath and registers
// the protocol.NodeFactory exported as the "Node" symbol.
func (r *Registry) LoadNodePlugins(pluginsPath string) error {
	factories, err := loadPlugin[protocol.NodeFactory](r.logger, pluginsPath, "Node")
	if err != nil {
		return err
	}

	for _, factory := range factories {
		r.RegisterNode(factory)
	}

	return nil
}

func validateConfig(nodeType string, schema map[string]any, config map[string]any) error {
	if schema == nil {
		return nil
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
	if err != nil {
		return fmt.Errorf("validate configuration for node type '%s': %w", nodeType, err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}

	return &ConfigError{NodeType: nodeType, Problems: problems}
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/" + strings.ToLower(symbolName) + "s"

	pluginPathList, err := fs.Glob(os.DirFS(rootPath), "**/*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", pluginsPath), slog.String("type", symbolName))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("lookup %s in plugin %s: %w", symbolName, p, err)
		}

		castV, ok := v.(T)
		if !ok {
			// exported variables are looked up as pointers
			ptr, isPtr := v.(*T)
			if !isPtr {
				return nil, fmt.Errorf("plugin %s: symbol %s has type %T", p, symbolName, v)
			}

			castV = *ptr
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded node plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
