package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/manus-bridge/internal/errs"
	"github.com/and161185/manus-bridge/internal/manus"
	"github.com/and161185/manus-bridge/internal/model"
	"github.com/and161185/manus-bridge/internal/repository"
)

// Defaults applied when a task is created without explicit settings.
const (
	defaultAgentProfile = "manus-1.5"
	defaultTaskMode     = "agent"
)

// TaskService proxies task operations upstream and reconciles the local
// persisted conversation state with remote responses.
type TaskService interface {
	// Create starts a new upstream thread and persists the local task.
	Create(ctx context.Context, userID uuid.UUID, p CreateTaskParams) (*model.Task, error)
	// Continue adds a turn to an existing thread and re-chains RemoteTaskID.
	Continue(ctx context.Context, userID, taskID uuid.UUID, p ContinueTaskParams) (*model.Task, error)
	// Get returns the task, fully synced from remote unless already terminal.
	Get(ctx context.Context, userID, taskID uuid.UUID) (*model.Task, error)
	// Poll refreshes only the status of a pending/running task.
	Poll(ctx context.Context, userID, taskID uuid.UUID) (model.TaskStatus, error)
	// List returns the user's tasks from local storage only.
	List(ctx context.Context, userID uuid.UUID) ([]model.Task, error)
	// Delete removes the local row and best-effort deletes the remote task.
	Delete(ctx context.Context, userID, taskID uuid.UUID) error
}

// CreateTaskParams are the inputs for a new task.
type CreateTaskParams struct {
	Prompt       string
	AccountID    uuid.UUID // Nil selects the user's default account
	AgentProfile string
	TaskMode     string
	ProjectID    string
	Attachments  []manus.Attachment
}

// ContinueTaskParams are the inputs for a continuation turn.
type ContinueTaskParams struct {
	Prompt      string
	Attachments []manus.Attachment
}

type TaskServiceImpl struct {
	tasks    repository.TaskRepository
	accounts repository.AccountRepository
	vault    Vault
	client   RemoteClient
	log      *zap.Logger
}

// NewTaskService constructs TaskService with required dependencies.
func NewTaskService(
	tasks repository.TaskRepository,
	accounts repository.AccountRepository,
	vault Vault,
	client RemoteClient,
	log *zap.Logger,
) *TaskServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskServiceImpl{tasks: tasks, accounts: accounts, vault: vault, client: client, log: log}
}

// Create starts an upstream thread. The local history is seeded with the
// user's prompt; the remote echo of that prompt is filtered out.
func (s *TaskServiceImpl) Create(ctx context.Context, userID uuid.UUID, p CreateTaskParams) (*model.Task, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	if p.Prompt == "" {
		return nil, fmt.Errorf("%w: empty prompt", errs.ErrValidation)
	}
	if p.AgentProfile == "" {
		p.AgentProfile = defaultAgentProfile
	}
	if p.TaskMode == "" {
		p.TaskMode = defaultTaskMode
	}

	var (
		account *model.Account
		err     error
	)
	if p.AccountID == uuid.Nil {
		account, err = s.accounts.GetDefault(ctx, userID)
	} else {
		account, err = s.accounts.Get(ctx, userID, p.AccountID)
	}
	if err != nil {
		return nil, err
	}
	key, err := s.vault.Decrypt(account.EncryptedAPIKey)
	if err != nil {
		return nil, err
	}
	creds := manus.Credentials{APIKey: key, BaseURL: account.BaseURL}

	resp, err := s.client.CreateTask(ctx, creds, manus.CreateParams{
		Prompt:       p.Prompt,
		AgentProfile: p.AgentProfile,
		TaskMode:     p.TaskMode,
		ProjectID:    p.ProjectID,
		Attachments:  p.Attachments,
	})
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	title := resp.Title
	if title == "" {
		title = model.DefaultTaskTitle
	}
	history := []model.Message{model.TextMessage("user", p.Prompt)}
	history = append(history, manus.AssistantOnly(manus.ParseOutput(resp.Output))...)

	task := &model.Task{
		ID:           id,
		UserID:       userID,
		AccountID:    account.ID,
		RemoteTaskID: resp.ID,
		Title:        title,
		Status:       model.ParseStatus(resp.Status),
		AgentProfile: p.AgentProfile,
		TaskMode:     p.TaskMode,
		ProjectID:    p.ProjectID,
		TaskURL:      resp.TaskURL,
		ShareURL:     resp.ShareURL,
		CreditUsage:  resp.CreditValue(),
		History:      history,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Continue sends a new turn referencing the latest remote response.
// RemoteTaskID is reassigned to the id of this response so the next
// continuation chains off it; credit usage accumulates per turn.
func (s *TaskServiceImpl) Continue(ctx context.Context, userID, taskID uuid.UUID, p ContinueTaskParams) (*model.Task, error) {
	if p.Prompt == "" {
		return nil, fmt.Errorf("%w: empty prompt", errs.ErrValidation)
	}
	task, err := s.tasks.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	creds, err := s.credentials(ctx, userID, task.AccountID)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.ContinueTask(ctx, creds, manus.ContinueParams{
		PreviousResponseID: task.RemoteTaskID,
		Prompt:             p.Prompt,
		AgentProfile:       task.AgentProfile,
		TaskMode:           task.TaskMode,
		Attachments:        p.Attachments,
	})
	if err != nil {
		return nil, err
	}

	task.History = append(task.History, model.TextMessage("user", p.Prompt))
	task.History = append(task.History, manus.AssistantOnly(manus.ParseOutput(resp.Output))...)
	if st := model.ParseStatus(resp.Status); resp.Status != "" && st != task.Status {
		task.Status = st
	}
	if resp.TaskURL != "" && resp.TaskURL != task.TaskURL {
		task.TaskURL = resp.TaskURL
	}
	task.CreditUsage += resp.CreditValue()
	task.RemoteTaskID = resp.ID

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Get performs a full sync. Terminal tasks are served from cache without a
// remote call; transport failures degrade to the cached row. A non-empty
// remote output replaces the local history wholesale, which drops messages
// not yet reflected upstream.
func (s *TaskServiceImpl) Get(ctx context.Context, userID, taskID uuid.UUID) (*model.Task, error) {
	task, err := s.tasks.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status.Terminal() {
		return task, nil
	}
	creds, err := s.credentials(ctx, userID, task.AccountID)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.GetTask(ctx, creds, task.RemoteTaskID)
	if err != nil {
		s.log.Warn("degraded read: serving cached task",
			zap.String("task_id", taskID.String()),
			zap.Error(err),
		)
		return task, nil
	}

	if resp.Status != "" {
		task.Status = model.ParseStatus(resp.Status)
	}
	if len(resp.Output) > 0 {
		task.History = manus.ParseOutput(resp.Output)
	}
	if task.Title == model.DefaultTaskTitle && resp.Title != "" {
		task.Title = resp.Title
	}
	if resp.TaskURL != "" {
		task.TaskURL = resp.TaskURL
	}
	if resp.ShareURL != "" {
		task.ShareURL = resp.ShareURL
	}
	if resp.CreditUsage != "" {
		// Full sync reports the cumulative total; replace, don't add.
		task.CreditUsage = resp.CreditValue()
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Poll refreshes only the status column, and only while the task can still
// move. Transport failures are masked behind the cached status.
func (s *TaskServiceImpl) Poll(ctx context.Context, userID, taskID uuid.UUID) (model.TaskStatus, error) {
	task, err := s.tasks.Get(ctx, userID, taskID)
	if err != nil {
		return "", err
	}
	if task.Status != model.StatusPending && task.Status != model.StatusRunning {
		return task.Status, nil
	}
	creds, err := s.credentials(ctx, userID, task.AccountID)
	if err != nil {
		return "", err
	}

	resp, err := s.client.GetTask(ctx, creds, task.RemoteTaskID)
	if err != nil {
		s.log.Warn("degraded poll: serving cached status",
			zap.String("task_id", taskID.String()),
			zap.Error(err),
		)
		return task.Status, nil
	}

	status := model.ParseStatus(resp.Status)
	if status != task.Status {
		if err := s.tasks.UpdateStatus(ctx, userID, taskID, status); err != nil {
			return "", err
		}
	}
	return status, nil
}

// List serves the user's tasks from local storage.
func (s *TaskServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.Task, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	return s.tasks.ListByUser(ctx, userID)
}

// Delete removes the local row; the remote task is deleted best-effort.
func (s *TaskServiceImpl) Delete(ctx context.Context, userID, taskID uuid.UUID) error {
	task, err := s.tasks.Get(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if creds, err := s.credentials(ctx, userID, task.AccountID); err == nil {
		if err := s.client.DeleteTask(ctx, creds, task.RemoteTaskID); err != nil {
			s.log.Warn("remote delete failed, removing local row anyway",
				zap.String("task_id", taskID.String()),
				zap.Error(err),
			)
		}
	} else {
		s.log.Warn("skipping remote delete: credentials unavailable",
			zap.String("task_id", taskID.String()),
			zap.Error(err),
		)
	}
	return s.tasks.Delete(ctx, userID, taskID)
}

// credentials loads the task's account and decrypts its key.
func (s *TaskServiceImpl) credentials(ctx context.Context, userID, accountID uuid.UUID) (manus.Credentials, error) {
	account, err := s.accounts.Get(ctx, userID, accountID)
	if err != nil {
		return manus.Credentials{}, err
	}
	key, err := s.vault.Decrypt(account.EncryptedAPIKey)
	if err != nil {
		return manus.Credentials{}, err
	}
	return manus.Credentials{APIKey: key, BaseURL: account.BaseURL}, nil
}
