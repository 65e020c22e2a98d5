// Package app holds the application view controller: a single event-driven
// reducer that consumes identity events and task snapshots and decides which
// screen to show.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	authdomain "github.com/nayhtooyan/collabtask/internal/auth/domain"
	"github.com/nayhtooyan/collabtask/internal/auth/dto"
	"github.com/nayhtooyan/collabtask/internal/prefs"
	taskdomain "github.com/nayhtooyan/collabtask/internal/task/domain"
	taskrepo "github.com/nayhtooyan/collabtask/internal/task/repository"
	"github.com/nayhtooyan/collabtask/pkg/gemini"
)

// View identifies the screen the application should render.
type View string

const (
	ViewLoading      View = "loading"
	ViewOnboarding   View = "onboarding"
	ViewAuth         View = "auth"
	ViewVerification View = "verification"
	ViewDashboard    View = "dashboard"
	ViewSettings     View = "settings"
)

// SessionService is the identity session boundary the controller consumes.
// usecase.SessionManager is the production implementation.
type SessionService interface {
	Subscribe() (<-chan *authdomain.Identity, func())
	Register(ctx context.Context, req dto.RegisterRequest) (*authdomain.Identity, error)
	Login(ctx context.Context, req dto.LoginRequest) (*authdomain.Identity, error)
	Logout()
	ResendVerification(ctx context.Context) error
	Reload(ctx context.Context) (*authdomain.Identity, error)
}

// taskSnapshot tags a snapshot with the owner the subscription was opened
// for, so deliveries from a superseded subscription can be discarded.
type taskSnapshot struct {
	owner string
	tasks []taskdomain.Task
}

// TaskInput is the user-entered portion of a task; owner and creation time
// are stamped by the controller.
type TaskInput struct {
	Title       string
	Description string
	Priority    taskdomain.Priority
	Category    taskdomain.Category
	SubTasks    []taskdomain.SubTask
}

// Controller owns all mutable UI state. State changes only in response to
// discrete events processed one at a time by Run; accessors take copies.
type Controller struct {
	sessions  SessionService
	store     taskrepo.TaskRepository
	generator gemini.TaskGenerator
	prefs     *prefs.Store

	// verifyConfirmDelay paces the manual verification check so the user
	// sees the confirmation before the dashboard appears.
	verifyConfirmDelay time.Duration

	snapshotCh chan taskSnapshot

	mu             sync.Mutex
	runCtx         context.Context
	view           View
	identity       *authdomain.Identity
	preferences    authdomain.Preferences
	tasks          []taskdomain.Task
	filterCategory string
	searchQuery    string
	cancelTasks    func()
	taskOwner      string
}

// NewController wires the controller. Local preferences are resolved here,
// before the first identity event, so the loading view has a deterministic
// lifetime bounded by the identity subscription's first callback.
func NewController(sessions SessionService, store taskrepo.TaskRepository, generator gemini.TaskGenerator, prefStore *prefs.Store) *Controller {
	return &Controller{
		sessions:           sessions,
		store:              store,
		generator:          generator,
		prefs:              prefStore,
		verifyConfirmDelay: time.Second,
		snapshotCh:         make(chan taskSnapshot, 8),
		runCtx:             context.Background(),
		view:               ViewLoading,
		preferences:        prefStore.Preferences(),
		filterCategory:     CategoryAll,
	}
}

// Run drives the controller until ctx is done: identity events and task
// snapshots are reduced one at a time on this goroutine.
func (c *Controller) Run(ctx context.Context) {
	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()

	identityCh, cancelIdentity := c.sessions.Subscribe()
	defer cancelIdentity()

	log.Println("[Controller] Event loop started")
	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			cancel := c.cancelTasks
			c.cancelTasks = nil
			c.taskOwner = ""
			c.mu.Unlock()
			if cancel != nil {
				cancel()
			}
			log.Println("[Controller] Event loop stopped")
			return
		case id := <-identityCh:
			c.handleIdentity(id)
		case snap := <-c.snapshotCh:
			c.applySnapshot(snap)
		}
	}
}

// handleIdentity re-evaluates the view state machine for an identity event.
func (c *Controller) handleIdentity(id *authdomain.Identity) {
	c.mu.Lock()
	c.identity = id

	var next View
	var cancel func()
	subscribeOwner := ""

	switch {
	case id == nil:
		c.tasks = nil
		cancel, c.cancelTasks = c.cancelTasks, nil
		c.taskOwner = ""
		if c.prefs.OnboardingSeen() {
			next = ViewAuth
		} else {
			next = ViewOnboarding
		}
	case !id.EmailVerified:
		c.tasks = nil
		cancel, c.cancelTasks = c.cancelTasks, nil
		c.taskOwner = ""
		next = ViewVerification
	default:
		next = ViewDashboard
		if c.taskOwner != id.ID {
			cancel, c.cancelTasks = c.cancelTasks, nil
			c.tasks = nil
			subscribeOwner = id.ID
		}
	}
	c.view = next
	c.mu.Unlock()

	log.Printf("[Controller] Identity event, view=%s", next)

	// Cancel before resubscribing: at most one live task subscription.
	if cancel != nil {
		cancel()
	}
	if subscribeOwner != "" {
		c.openTaskStream(subscribeOwner)
	}
}

// openTaskStream opens the task subscription for owner and records it as the
// one live subscription.
func (c *Controller) openTaskStream(owner string) {
	c.mu.Lock()
	ctx := c.runCtx
	c.taskOwner = owner
	c.mu.Unlock()

	cancel, err := c.store.Subscribe(ctx, owner, func(tasks []taskdomain.Task) {
		select {
		case c.snapshotCh <- taskSnapshot{owner: owner, tasks: tasks}:
		case <-ctx.Done():
		}
	})
	if err != nil {
		log.Printf("[Controller] Failed to open task subscription for %s: %v", owner, err)
		c.applySnapshot(taskSnapshot{owner: owner, tasks: []taskdomain.Task{}})
		return
	}

	c.mu.Lock()
	if c.taskOwner == owner {
		c.cancelTasks = cancel
		c.mu.Unlock()
		return
	}
	// Owner changed while subscribing; this stream is already superseded.
	c.mu.Unlock()
	cancel()
}

// applySnapshot installs a task snapshot unless it belongs to a superseded
// subscription. Snapshots arrive already ordered by creation time descending
// and are never re-sorted here.
func (c *Controller) applySnapshot(snap taskSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if snap.owner != c.taskOwner {
		log.Printf("[Controller] Discarding snapshot from superseded owner %s", snap.owner)
		return
	}
	c.tasks = snap.tasks
}

// --- Identity actions ---

// Register delegates to the session manager; the resulting identity event
// moves the view to Verification.
func (c *Controller) Register(ctx context.Context, req dto.RegisterRequest) (*authdomain.Identity, error) {
	return c.sessions.Register(ctx, req)
}

// Login delegates to the session manager; the resulting identity event
// selects Verification or Dashboard.
func (c *Controller) Login(ctx context.Context, req dto.LoginRequest) (*authdomain.Identity, error) {
	return c.sessions.Login(ctx, req)
}

// Logout clears the session; the nil identity event clears the task set and
// returns the view to Auth.
func (c *Controller) Logout() {
	c.sessions.Logout()
}

// ResendVerification re-sends the verification email to the current identity.
func (c *Controller) ResendVerification(ctx context.Context) error {
	return c.sessions.ResendVerification(ctx)
}

// CheckVerification is the manual "I have verified" action: it reloads the
// identity and reports the fresh flag. When verification succeeded, a short
// confirmation delay passes before returning; the reload's identity event
// drives the Dashboard transition.
func (c *Controller) CheckVerification(ctx context.Context) (bool, error) {
	id, err := c.sessions.Reload(ctx)
	if err != nil {
		return false, err
	}
	if !id.EmailVerified {
		return false, nil
	}
	if c.verifyConfirmDelay > 0 {
		time.Sleep(c.verifyConfirmDelay)
	}
	return true, nil
}

// AcknowledgeOnboarding persists the seen flag and leaves Onboarding for
// good.
func (c *Controller) AcknowledgeOnboarding() {
	if err := c.prefs.SetOnboardingSeen(true); err != nil {
		log.Printf("[Controller] Failed to persist onboarding flag: %v", err)
	}
	c.mu.Lock()
	if c.view == ViewOnboarding {
		c.view = ViewAuth
	}
	c.mu.Unlock()
}

// OpenSettings enters Settings; it is reachable from Dashboard only.
func (c *Controller) OpenSettings() {
	c.mu.Lock()
	if c.view == ViewDashboard {
		c.view = ViewSettings
	}
	c.mu.Unlock()
}

// CloseSettings returns from Settings to Dashboard.
func (c *Controller) CloseSettings() {
	c.mu.Lock()
	if c.view == ViewSettings {
		c.view = ViewDashboard
	}
	c.mu.Unlock()
}

// --- Task actions ---

// AddTask stamps owner and creation time and persists a new task.
func (c *Controller) AddTask(ctx context.Context, in TaskInput) (string, error) {
	id := c.Identity()
	if id == nil {
		return "", authdomain.NewError(authdomain.ErrCodeNotAuthenticated, "Please login to add tasks.", nil)
	}
	subTasks := in.SubTasks
	if subTasks == nil {
		subTasks = []taskdomain.SubTask{}
	}
	task := &taskdomain.Task{
		OwnerID:     id.ID,
		Title:       in.Title,
		Description: in.Description,
		Completed:   false,
		Priority:    in.Priority,
		Category:    in.Category,
		CreatedAt:   time.Now().UnixMilli(),
		SubTasks:    subTasks,
	}
	return c.store.Create(ctx, task)
}

// UpdateTask applies a partial update to a task.
func (c *Controller) UpdateTask(ctx context.Context, id string, fields map[string]any) error {
	return c.store.Update(ctx, id, fields)
}

// DeleteTask removes a task.
func (c *Controller) DeleteTask(ctx context.Context, id string) error {
	return c.store.Delete(ctx, id)
}

// ToggleTask flips a task's completed flag.
func (c *Controller) ToggleTask(ctx context.Context, id string) error {
	task := c.findTask(id)
	if task == nil {
		return fmt.Errorf("task %s not found", id)
	}
	return c.store.Update(ctx, id, map[string]any{"completed": !task.Completed})
}

// ToggleSubTask flips one sub-task and replaces the parent's whole subTasks
// sequence in a single update call.
func (c *Controller) ToggleSubTask(ctx context.Context, taskID, subTaskID string) error {
	task := c.findTask(taskID)
	if task == nil {
		return fmt.Errorf("task %s not found", taskID)
	}
	replaced := make([]taskdomain.SubTask, len(task.SubTasks))
	for i, st := range task.SubTasks {
		if st.ID == subTaskID {
			st.Completed = !st.Completed
		}
		replaced[i] = st
	}
	return c.store.Update(ctx, taskID, map[string]any{"subTasks": replaced})
}

// GenerateTasks runs the AI batch-insert flow: one generation call in the
// user's language, then one concurrent creation per draft. A generation
// failure aborts before any creation; creation failures yield a single batch
// error, with no rollback of the creations that succeeded.
func (c *Controller) GenerateTasks(ctx context.Context, prompt string) error {
	c.mu.Lock()
	id := c.identity
	lang := c.preferences.Language
	c.mu.Unlock()
	if id == nil {
		return authdomain.NewError(authdomain.ErrCodeNotAuthenticated, "Please login to generate tasks.", nil)
	}

	drafts, err := c.generator.GenerateTasks(ctx, prompt, lang)
	if err != nil {
		return err
	}

	createdAt := time.Now().UnixMilli()
	var wg sync.WaitGroup
	var batchMu sync.Mutex
	var firstErr error
	failed := 0

	for _, draft := range drafts {
		task := draftToTask(draft, id.ID, createdAt)
		wg.Add(1)
		go func(t *taskdomain.Task) {
			defer wg.Done()
			if _, err := c.store.Create(ctx, t); err != nil {
				batchMu.Lock()
				failed++
				if firstErr == nil {
					firstErr = err
				}
				batchMu.Unlock()
			}
		}(task)
	}
	wg.Wait()

	if firstErr != nil {
		return fmt.Errorf("failed to create %d of %d generated tasks: %w", failed, len(drafts), firstErr)
	}
	log.Printf("[Controller] AI batch created %d tasks", len(drafts))
	return nil
}

// draftToTask converts a generated draft into a creation request: never
// completed, sub-task titles expanded with fresh ids.
func draftToTask(d gemini.TaskDraft, ownerID string, createdAt int64) *taskdomain.Task {
	subTasks := make([]taskdomain.SubTask, 0, len(d.SubTasks))
	for _, title := range d.SubTasks {
		subTasks = append(subTasks, taskdomain.SubTask{
			ID:        uuid.New().String(),
			Title:     title,
			Completed: false,
		})
	}
	return &taskdomain.Task{
		OwnerID:     ownerID,
		Title:       d.Title,
		Description: d.Description,
		Completed:   false,
		Priority:    taskdomain.ParsePriority(d.Priority),
		Category:    taskdomain.ParseCategory(d.Category),
		CreatedAt:   createdAt,
		SubTasks:    subTasks,
	}
}

// --- Preferences ---

// SetTheme persists and applies the theme.
func (c *Controller) SetTheme(theme authdomain.Theme) error {
	if err := c.prefs.SetTheme(theme); err != nil {
		return err
	}
	c.mu.Lock()
	c.preferences.Theme = theme
	c.mu.Unlock()
	return nil
}

// SetLanguage persists and applies the UI/AI language.
func (c *Controller) SetLanguage(lang authdomain.Language) error {
	if err := c.prefs.SetLanguage(lang); err != nil {
		return err
	}
	c.mu.Lock()
	c.preferences.Language = lang
	c.mu.Unlock()
	return nil
}

// SetNotifications persists and applies the notification toggle.
func (c *Controller) SetNotifications(enabled bool) error {
	if err := c.prefs.SetNotifications(enabled); err != nil {
		return err
	}
	c.mu.Lock()
	c.preferences.Notifications = enabled
	c.mu.Unlock()
	return nil
}

// --- Derived views and accessors ---

// View returns the screen to render.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Identity returns the current identity, nil when signed out.
func (c *Controller) Identity() *authdomain.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Profile merges the current identity with local preferences for rendering.
func (c *Controller) Profile() *authdomain.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return nil
	}
	return &authdomain.Profile{Identity: *c.identity, Preferences: c.preferences}
}

// Tasks returns a copy of the full working task set, in store order.
func (c *Controller) Tasks() []taskdomain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	tasks := make([]taskdomain.Task, len(c.tasks))
	copy(tasks, c.tasks)
	return tasks
}

// SetFilterCategory sets the category filter ("All" or a category name).
func (c *Controller) SetFilterCategory(category string) {
	c.mu.Lock()
	c.filterCategory = category
	c.mu.Unlock()
}

// SetSearchQuery sets the search text.
func (c *Controller) SetSearchQuery(query string) {
	c.mu.Lock()
	c.searchQuery = query
	c.mu.Unlock()
}

// VisibleTasks recomputes the filtered view from current state.
func (c *Controller) VisibleTasks() []taskdomain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return FilterTasks(c.tasks, c.filterCategory, c.searchQuery)
}

// Stats recomputes the dashboard aggregates from the full task set.
func (c *Controller) Stats() taskdomain.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ComputeStats(c.tasks)
}

func (c *Controller) findTask(id string) *taskdomain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			t := c.tasks[i]
			return &t
		}
	}
	return nil
}
