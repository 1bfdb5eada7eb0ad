package service

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/manus-bridge/internal/errs"
	"github.com/and161185/manus-bridge/internal/manus"
	"github.com/and161185/manus-bridge/internal/model"
	"github.com/and161185/manus-bridge/internal/repository"
)

type fakeAccountRepo struct {
	byID    map[uuid.UUID]*model.Account
	created []*model.Account

	deleteErr  error
	defaultErr error
}

var _ repository.AccountRepository = (*fakeAccountRepo)(nil)

func newFakeAccountRepo(accounts ...*model.Account) *fakeAccountRepo {
	r := &fakeAccountRepo{byID: map[uuid.UUID]*model.Account{}}
	for _, a := range accounts {
		r.byID[a.ID] = a
	}
	return r
}

func (f *fakeAccountRepo) Create(_ context.Context, a *model.Account) error {
	cp := *a
	f.byID[a.ID] = &cp
	f.created = append(f.created, &cp)
	return nil
}

func (f *fakeAccountRepo) Get(_ context.Context, userID, id uuid.UUID) (*model.Account, error) {
	a, ok := f.byID[id]
	if !ok || a.UserID != userID {
		return nil, errs.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccountRepo) GetDefault(_ context.Context, userID uuid.UUID) (*model.Account, error) {
	if f.defaultErr != nil {
		return nil, f.defaultErr
	}
	for _, a := range f.byID {
		if a.UserID == userID && a.IsDefault {
			cp := *a
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeAccountRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Account, error) {
	var out []model.Account
	for _, a := range f.byID {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) Delete(_ context.Context, userID, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	a, ok := f.byID[id]
	if !ok || a.UserID != userID {
		return errs.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeAccountRepo) SetDefault(_ context.Context, userID, id uuid.UUID) error {
	target, ok := f.byID[id]
	if !ok || target.UserID != userID {
		return errs.ErrNotFound
	}
	for _, a := range f.byID {
		if a.UserID == userID {
			a.IsDefault = false
		}
	}
	target.IsDefault = true
	return nil
}

type fakeTaskRepo struct {
	byID map[uuid.UUID]*model.Task

	updates       []*model.Task
	statusUpdates []model.TaskStatus
}

var _ repository.TaskRepository = (*fakeTaskRepo)(nil)

func newFakeTaskRepo(tasks ...*model.Task) *fakeTaskRepo {
	r := &fakeTaskRepo{byID: map[uuid.UUID]*model.Task{}}
	for _, t := range tasks {
		r.byID[t.ID] = t
	}
	return r
}

func cloneTask(t *model.Task) *model.Task {
	cp := *t
	cp.History = append([]model.Message(nil), t.History...)
	return &cp
}

func (f *fakeTaskRepo) Create(_ context.Context, t *model.Task) error {
	f.byID[t.ID] = cloneTask(t)
	return nil
}

func (f *fakeTaskRepo) Get(_ context.Context, userID, id uuid.UUID) (*model.Task, error) {
	t, ok := f.byID[id]
	if !ok || t.UserID != userID {
		return nil, errs.ErrNotFound
	}
	return cloneTask(t), nil
}

func (f *fakeTaskRepo) Update(_ context.Context, t *model.Task) error {
	if _, ok := f.byID[t.ID]; !ok {
		return errs.ErrNotFound
	}
	f.byID[t.ID] = cloneTask(t)
	f.updates = append(f.updates, cloneTask(t))
	return nil
}

func (f *fakeTaskRepo) UpdateStatus(_ context.Context, userID, id uuid.UUID, status model.TaskStatus) error {
	t, ok := f.byID[id]
	if !ok || t.UserID != userID {
		return errs.ErrNotFound
	}
	t.Status = status
	f.statusUpdates = append(f.statusUpdates, status)
	return nil
}

func (f *fakeTaskRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Task, error) {
	var out []model.Task
	for _, t := range f.byID {
		if t.UserID == userID {
			out = append(out, *cloneTask(t))
		}
	}
	return out, nil
}

func (f *fakeTaskRepo) Delete(_ context.Context, userID, id uuid.UUID) error {
	t, ok := f.byID[id]
	if !ok || t.UserID != userID {
		return errs.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

// fakeClient scripts upstream responses and records the calls made.
type fakeClient struct {
	createIn  []manus.CreateParams
	createOut []*manus.TaskResponse
	createErr error

	contIn  []manus.ContinueParams
	contOut []*manus.TaskResponse
	contErr error

	getIn  []string
	getOut []*manus.TaskResponse
	getErr error

	listIn  []manus.ListParams
	listOut *manus.ListResult
	listErr error

	delIn  []string
	delErr error

	creds []manus.Credentials
}

var _ RemoteClient = (*fakeClient)(nil)

func (f *fakeClient) CreateTask(_ context.Context, creds manus.Credentials, p manus.CreateParams) (*manus.TaskResponse, error) {
	f.creds = append(f.creds, creds)
	f.createIn = append(f.createIn, p)
	if f.createErr != nil {
		return nil, f.createErr
	}
	out := f.createOut[len(f.createIn)-1]
	return out, nil
}

func (f *fakeClient) ContinueTask(_ context.Context, creds manus.Credentials, p manus.ContinueParams) (*manus.TaskResponse, error) {
	f.creds = append(f.creds, creds)
	f.contIn = append(f.contIn, p)
	if f.contErr != nil {
		return nil, f.contErr
	}
	return f.contOut[len(f.contIn)-1], nil
}

func (f *fakeClient) GetTask(_ context.Context, creds manus.Credentials, remoteID string) (*manus.TaskResponse, error) {
	f.creds = append(f.creds, creds)
	f.getIn = append(f.getIn, remoteID)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut[len(f.getIn)-1], nil
}

func (f *fakeClient) ListTasks(_ context.Context, creds manus.Credentials, p manus.ListParams) (*manus.ListResult, error) {
	f.creds = append(f.creds, creds)
	f.listIn = append(f.listIn, p)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listOut, nil
}

func (f *fakeClient) DeleteTask(_ context.Context, creds manus.Credentials, remoteID string) error {
	f.creds = append(f.creds, creds)
	f.delIn = append(f.delIn, remoteID)
	return f.delErr
}
