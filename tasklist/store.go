package tasklist

import "sync"

// PendingKey identifies an outstanding mutation request.
type PendingKey struct {
	ID   string
	Kind OpKind
}

// Store holds the canonical collections plus the pending-operation set.
// A mutex serializes transitions so readers always observe fully reconciled
// state; an optimistic change is never visible without its pending flag.
// All mutation goes through the engine's protocol.
type Store struct {
	mu          sync.Mutex
	active      []Todo
	archived    []Todo
	projects    []Project
	members     []Member
	projectByID map[string]Project
	pending     map[PendingKey]struct{}
	flash       map[string]string
	nextSubID   int
	subscribers map[int]func()
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		projectByID: make(map[string]Project),
		pending:     make(map[PendingKey]struct{}),
		flash:       make(map[string]string),
		subscribers: make(map[int]func()),
	}
}

// Subscribe registers a callback invoked after every committed state
// transition. The returned function cancels the subscription.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// notify invokes subscribers outside the lock so they can read the store.
func (s *Store) notify() {
	s.mu.Lock()
	callbacks := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		callbacks = append(callbacks, fn)
	}
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// Active returns a deep copy of the active collection in store order.
func (s *Store) Active() []Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTodos(s.active)
}

// Archived returns a deep copy of the archived collection.
func (s *Store) Archived() []Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTodos(s.archived)
}

// Projects returns a copy of the known projects.
func (s *Store) Projects() []Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Project(nil), s.projects...)
}

// Members returns a copy of the known members.
func (s *Store) Members() []Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Member(nil), s.members...)
}

// Project resolves a project by ID via the derived lookup map.
func (s *Store) Project(id string) (Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projectByID[id]
	return project, ok
}

// ProjectIndex returns a copy of the id -> project lookup map.
func (s *Store) ProjectIndex() map[string]Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	index := make(map[string]Project, len(s.projectByID))
	for id, project := range s.projectByID {
		index[id] = project
	}
	return index
}

// Member resolves a member by ID.
func (s *Store) Member(id string) (Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, member := range s.members {
		if member.ID == id {
			return member, true
		}
	}
	return Member{}, false
}

// TodoByID returns a copy of the todo with the given ID from whichever
// collection currently holds it.
func (s *Store) TodoByID(id string) (Todo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if todo, _, ok := findTodo(s.active, id); ok {
		return todo.Clone(), true
	}
	if todo, _, ok := findTodo(s.archived, id); ok {
		return todo.Clone(), true
	}
	return Todo{}, false
}

// ApplyActive replaces the active collection, projects, and members with a
// freshly fetched list in a single transition.
func (s *Store) ApplyActive(list ActiveList) {
	s.mu.Lock()
	s.active = cloneTodos(list.Todos)
	s.projects = append([]Project(nil), list.Projects...)
	s.members = append([]Member(nil), list.Members...)
	s.rebuildProjectIndexLocked()
	s.mu.Unlock()
	s.notify()
}

// ApplyArchived replaces the archived collection and merges any projects the
// archived fetch resolved.
func (s *Store) ApplyArchived(list ArchivedList) {
	s.mu.Lock()
	s.archived = cloneTodos(list.Todos)
	for _, project := range list.Projects {
		s.upsertProjectLocked(project)
	}
	s.mu.Unlock()
	s.notify()
}

// ReplaceTodo swaps in a canonical entity wherever its ID currently lives.
// Returns false when the ID is in neither collection.
func (s *Store) ReplaceTodo(todo Todo) bool {
	s.mu.Lock()
	replaced := false
	if _, i, ok := findTodo(s.active, todo.ID); ok {
		s.active[i] = todo.Clone()
		replaced = true
	}
	if _, i, ok := findTodo(s.archived, todo.ID); ok {
		s.archived[i] = todo.Clone()
		replaced = true
	}
	s.mu.Unlock()
	if replaced {
		s.notify()
	}
	return replaced
}

// AppendActive adds a todo to the end of the active collection.
func (s *Store) AppendActive(todo Todo) {
	s.mu.Lock()
	s.active = append(s.active, todo.Clone())
	s.mu.Unlock()
	s.notify()
}

// RemoveActive removes a todo from the active collection, returning the
// removed entity and its position for later splicing.
func (s *Store) RemoveActive(id string) (Todo, int, bool) {
	s.mu.Lock()
	todo, index, ok := removeTodo(&s.active, id)
	s.mu.Unlock()
	if ok {
		s.notify()
	}
	return todo, index, ok
}

// InsertActive splices a todo back into the active collection. The index is
// clamped to the current bounds.
func (s *Store) InsertActive(todo Todo, index int) {
	s.mu.Lock()
	s.active = insertTodo(s.active, todo, index)
	s.mu.Unlock()
	s.notify()
}

// AppendArchived adds a todo to the end of the archived collection.
func (s *Store) AppendArchived(todo Todo) {
	s.mu.Lock()
	s.archived = append(s.archived, todo.Clone())
	s.mu.Unlock()
	s.notify()
}

// RemoveArchived removes a todo from the archived collection.
func (s *Store) RemoveArchived(id string) (Todo, int, bool) {
	s.mu.Lock()
	todo, index, ok := removeTodo(&s.archived, id)
	s.mu.Unlock()
	if ok {
		s.notify()
	}
	return todo, index, ok
}

// InsertArchived splices a todo back into the archived collection.
func (s *Store) InsertArchived(todo Todo, index int) {
	s.mu.Lock()
	s.archived = insertTodo(s.archived, todo, index)
	s.mu.Unlock()
	s.notify()
}

// UpsertProject adds or replaces a project and refreshes the lookup map.
func (s *Store) UpsertProject(project Project) {
	s.mu.Lock()
	s.upsertProjectLocked(project)
	s.mu.Unlock()
	s.notify()
}

// RemoveProject drops a project, used to roll back an optimistic create.
func (s *Store) RemoveProject(id string) {
	s.mu.Lock()
	for i, project := range s.projects {
		if project.ID == id {
			s.projects = append(s.projects[:i], s.projects[i+1:]...)
			break
		}
	}
	delete(s.projectByID, id)
	s.mu.Unlock()
	s.notify()
}

// BeginPending marks an operation as in flight. Returns false when a request
// for the same (entity, kind) pair is already outstanding.
func (s *Store) BeginPending(key PendingKey) bool {
	s.mu.Lock()
	if _, exists := s.pending[key]; exists {
		s.mu.Unlock()
		return false
	}
	s.pending[key] = struct{}{}
	s.mu.Unlock()
	s.notify()
	return true
}

// EndPending clears an in-flight marker. Safe to call unconditionally.
func (s *Store) EndPending(key PendingKey) {
	s.mu.Lock()
	_, existed := s.pending[key]
	delete(s.pending, key)
	s.mu.Unlock()
	if existed {
		s.notify()
	}
}

// Pending reports whether a request for the key is outstanding.
func (s *Store) Pending(key PendingKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.pending[key]
	return exists
}

// PendingKeys returns all outstanding operation keys.
func (s *Store) PendingKeys() []PendingKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]PendingKey, 0, len(s.pending))
	for key := range s.pending {
		keys = append(keys, key)
	}
	return keys
}

// SetFlash records a user-facing error for an entity.
func (s *Store) SetFlash(id, message string) {
	s.mu.Lock()
	s.flash[id] = message
	s.mu.Unlock()
	s.notify()
}

// ClearFlash drops the recorded error for an entity.
func (s *Store) ClearFlash(id string) {
	s.mu.Lock()
	_, existed := s.flash[id]
	delete(s.flash, id)
	s.mu.Unlock()
	if existed {
		s.notify()
	}
}

// Flash returns the recorded error for an entity, if any.
func (s *Store) Flash(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	message, ok := s.flash[id]
	return message, ok
}

func (s *Store) rebuildProjectIndexLocked() {
	s.projectByID = make(map[string]Project, len(s.projects))
	for _, project := range s.projects {
		s.projectByID[project.ID] = project
	}
}

func (s *Store) upsertProjectLocked(project Project) {
	for i, existing := range s.projects {
		if existing.ID == project.ID {
			s.projects[i] = project
			s.projectByID[project.ID] = project
			return
		}
	}
	s.projects = append(s.projects, project)
	s.projectByID[project.ID] = project
}

func cloneTodos(todos []Todo) []Todo {
	cloned := make([]Todo, len(todos))
	for i, todo := range todos {
		cloned[i] = todo.Clone()
	}
	return cloned
}

func findTodo(todos []Todo, id string) (Todo, int, bool) {
	for i := range todos {
		if todos[i].ID == id {
			return todos[i], i, true
		}
	}
	return Todo{}, -1, false
}

func removeTodo(todos *[]Todo, id string) (Todo, int, bool) {
	for i := range *todos {
		if (*todos)[i].ID == id {
			removed := (*todos)[i]
			*todos = append((*todos)[:i], (*todos)[i+1:]...)
			return removed, i, true
		}
	}
	return Todo{}, -1, false
}

func insertTodo(todos []Todo, todo Todo, index int) []Todo {
	if index < 0 {
		index = 0
	}
	if index > len(todos) {
		index = len(todos)
	}
	todos = append(todos, Todo{})
	copy(todos[index+1:], todos[index:])
	todos[index] = todo.Clone()
	return todos
}
