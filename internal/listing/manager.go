package listing

import "sync"

// Factory builds the controller for one owner's resource screen.
type Factory func(owner, resource string) (*Controller, error)

type key struct {
	owner    string
	resource string
}

// Manager keeps one controller per signed-in owner and resource.
type Manager struct {
	mu          sync.Mutex
	controllers map[key]*Controller
	factory     Factory
}

func NewManager(factory Factory) *Manager {
	return &Manager{controllers: make(map[key]*Controller), factory: factory}
}

// Get returns the owner's controller for resource, creating it on first use.
func (m *Manager) Get(owner, resource string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{owner: owner, resource: resource}
	if ctrl, ok := m.controllers[k]; ok {
		return ctrl, nil
	}
	ctrl, err := m.factory(owner, resource)
	if err != nil {
		return nil, err
	}
	m.controllers[k] = ctrl
	return ctrl, nil
}

// Drop closes and forgets every controller of the owner.
func (m *Manager) Drop(owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, ctrl := range m.controllers {
		if k.owner == owner {
			ctrl.Close()
			delete(m.controllers, k)
		}
	}
}

// Len returns the number of live controllers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.controllers)
}
