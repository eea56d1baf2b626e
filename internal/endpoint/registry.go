package endpoint

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for operations on an unknown endpoint ID.
	ErrNotFound = errors.New("endpoint not found")
	// ErrDuplicateID is returned when adding an endpoint whose ID is taken.
	ErrDuplicateID = errors.New("duplicate endpoint id")
)

// lane owns one endpoint. mu guards ep for readers and writers; the turn
// fields order the probe applications for this endpoint.
type lane struct {
	mu sync.RWMutex
	ep Endpoint

	turn    sync.Mutex
	cond    *sync.Cond
	issued  uint64
	applied uint64
}

func newLane(ep Endpoint) *lane {
	l := &lane{ep: ep}
	l.cond = sync.NewCond(&l.turn)
	return l
}

// Ticket is a place in an endpoint's application order, taken when a probe
// is dispatched.
type Ticket struct {
	EndpointID   string
	DispatchedAt time.Time
	seq          uint64
	l            *lane
}

// Registry is the set of monitored endpoints. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	order      []string
	lanes      map[string]*lane
	maxRecords int
}

// NewRegistry returns an empty registry. maxRecords > 0 keeps only that many
// of the newest records per endpoint; 0 keeps everything.
func NewRegistry(maxRecords int) *Registry {
	return &Registry{
		lanes:      make(map[string]*lane),
		maxRecords: maxRecords,
	}
}

// Restore replaces the registry contents with eps, keeping their order and IDs.
func (r *Registry) Restore(eps []Endpoint) error {
	lanes := make(map[string]*lane, len(eps))
	order := make([]string, 0, len(eps))
	for _, ep := range eps {
		if ep.ID == "" {
			return fmt.Errorf("restoring endpoint %q: empty id", ep.Name)
		}
		if _, ok := lanes[ep.ID]; ok {
			return fmt.Errorf("restoring endpoint %q: %w", ep.ID, ErrDuplicateID)
		}
		lanes[ep.ID] = newLane(ep.Clone())
		order = append(order, ep.ID)
	}

	r.mu.Lock()
	r.lanes = lanes
	r.order = order
	r.mu.Unlock()
	return nil
}

// Add registers ep. An empty ID is replaced with a generated one.
func (r *Registry) Add(ep Endpoint) (Endpoint, error) {
	if strings.TrimSpace(ep.URL) == "" {
		return Endpoint{}, errors.New("endpoint url is required")
	}
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	if ep.LastKnownStatus == "" {
		ep.LastKnownStatus = PendingStatus
	}
	ep.URL = NormalizeURL(ep.URL)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lanes[ep.ID]; ok {
		return Endpoint{}, fmt.Errorf("adding %q: %w", ep.ID, ErrDuplicateID)
	}
	r.lanes[ep.ID] = newLane(ep.Clone())
	r.order = append(r.order, ep.ID)
	return ep, nil
}

// Update changes the editor-owned fields of an endpoint. Status and history
// are left untouched.
func (r *Registry) Update(id, name, rawURL string, s Settings) (Endpoint, error) {
	l, err := r.lane(id)
	if err != nil {
		return Endpoint{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if name != "" {
		l.ep.Name = strings.TrimSpace(name)
	}
	if rawURL != "" {
		l.ep.URL = NormalizeURL(rawURL)
	}
	l.ep.Settings = s
	return l.ep.Clone(), nil
}

// Remove deletes an endpoint and its history.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lanes[id]; !ok {
		return fmt.Errorf("removing %q: %w", id, ErrNotFound)
	}
	delete(r.lanes, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a copy of one endpoint.
func (r *Registry) Get(id string) (Endpoint, error) {
	l, err := r.lane(id)
	if err != nil {
		return Endpoint{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ep.Clone(), nil
}

// List returns copies of all endpoints in insertion order.
func (r *Registry) List() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Endpoint, 0, len(r.order))
	for _, id := range r.order {
		l := r.lanes[id]
		l.mu.RLock()
		out = append(out, l.ep.Clone())
		l.mu.RUnlock()
	}
	return out
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// SetStatus records the most recently seen status description.
func (r *Registry) SetStatus(id, status string) error {
	l, err := r.lane(id)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.ep.LastKnownStatus = status
	l.mu.Unlock()
	return nil
}

// Dispatch takes the next place in the endpoint's application order. Every
// ticket must be passed to Apply or Release exactly once, otherwise later
// tickets for the same endpoint wait forever.
func (r *Registry) Dispatch(id string) (Ticket, error) {
	l, err := r.lane(id)
	if err != nil {
		return Ticket{}, err
	}
	l.turn.Lock()
	defer l.turn.Unlock()
	l.issued++
	return Ticket{
		EndpointID:   id,
		DispatchedAt: time.Now(),
		seq:          l.issued,
		l:            l,
	}, nil
}

// Apply waits until every earlier ticket of the same endpoint has been
// applied or released, then runs fn while holding the endpoint's turn.
func (r *Registry) Apply(t Ticket, fn func() error) error {
	if t.l == nil {
		return fmt.Errorf("applying to %q: invalid ticket", t.EndpointID)
	}
	l := t.l
	l.turn.Lock()
	defer l.turn.Unlock()
	for l.applied != t.seq-1 {
		l.cond.Wait()
	}
	defer func() {
		l.applied = t.seq
		l.cond.Broadcast()
	}()
	return fn()
}

// Release gives up a ticket without applying anything.
func (r *Registry) Release(t Ticket) {
	_ = r.Apply(t, func() error { return nil })
}

func (r *Registry) lane(id string) (*lane, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lanes[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	return l, nil
}
