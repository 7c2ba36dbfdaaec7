package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"

	"github.com/RedDead11/Todo-App/domain"
)

const todosPartition = "todos"

// Tables stores todo rows in an Azure Table. It plays the role of the server
// for the fields PostgREST would assign: id and timestamps.
type Tables struct {
	client *aztables.Client
	now    func() time.Time
	newID  func() string
}

// NewTables creates a Tables store from the table service URL and the account
// key. The account name is the first label of the URL host.
func NewTables(serviceURL, accountKey, table string) (*Tables, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return nil, err
	}
	account, _, _ := strings.Cut(u.Hostname(), ".")
	if account == "" {
		return nil, errors.New("storage: cannot derive account name from url")
	}
	cred, err := aztables.NewSharedKeyCredential(account, accountKey)
	if err != nil {
		return nil, err
	}
	// Retries are disabled: a failed call is reported to the user as is.
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	}
	svc, err := aztables.NewServiceClientWithSharedKey(strings.TrimRight(serviceURL, "/"), cred, &opts)
	if err != nil {
		return nil, err
	}
	return &Tables{
		client: svc.NewClient(table),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}, nil
}

// EnsureTable creates the table when it does not exist yet.
func (s *Tables) EnsureTable(ctx context.Context) error {
	_, err := s.client.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}

type todoEntity struct {
	aztables.Entity
	UserID    *string   `json:"UserID,omitempty"`
	Todo      string    `json:"Todo"`
	IsDone    bool      `json:"IsDone"`
	CreatedAt time.Time `json:"CreatedAt"`
	UpdatedAt time.Time `json:"UpdatedAt"`
}

func decodeTodoEntity(data []byte) (domain.Row, error) {
	var ent todoEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Row{}, err
	}
	return domain.Row{
		ID:        domain.ID(ent.RowKey),
		UserID:    ent.UserID,
		Todo:      ent.Todo,
		IsDone:    ent.IsDone,
		CreatedAt: ent.CreatedAt,
		UpdatedAt: ent.UpdatedAt,
	}, nil
}

// ListAll returns every row ordered by creation time, newest first.
func (s *Tables) ListAll(ctx context.Context) ([]domain.Row, error) {
	filter := "PartitionKey eq '" + todosPartition + "'"
	pager := s.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	rows := []domain.Row{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			row, err := decodeTodoEntity(e)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}
	sortNewestFirst(rows)
	return rows, nil
}

func sortNewestFirst(rows []domain.Row) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
}

// Insert stores a new row with a generated id.
func (s *Tables) Insert(ctx context.Context, row domain.NewRow) (domain.Row, error) {
	now := s.now()
	ent := todoEntity{
		Entity:    aztables.Entity{PartitionKey: todosPartition, RowKey: s.newID()},
		UserID:    row.UserID,
		Todo:      row.Todo,
		IsDone:    row.IsDone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return domain.Row{}, err
	}
	if _, err := s.client.AddEntity(ctx, payload, nil); err != nil {
		return domain.Row{}, err
	}
	return domain.Row{
		ID:        domain.ID(ent.RowKey),
		UserID:    ent.UserID,
		Todo:      ent.Todo,
		IsDone:    ent.IsDone,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func patchEntity(id domain.ID, patch domain.RowPatch, now time.Time) map[string]any {
	ent := map[string]any{
		"PartitionKey": todosPartition,
		"RowKey":       id.String(),
		"UpdatedAt":    now,
	}
	if patch.Todo != nil {
		ent["Todo"] = *patch.Todo
	}
	if patch.IsDone != nil {
		ent["IsDone"] = *patch.IsDone
	}
	return ent
}

// Update merges patch into the existing row.
func (s *Tables) Update(ctx context.Context, id domain.ID, patch domain.RowPatch) error {
	if patch.Empty() {
		return errors.New("storage: empty patch")
	}
	payload, err := json.Marshal(patchEntity(id, patch, s.now()))
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.client.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	return notFound(err)
}

// Delete removes the row.
func (s *Tables) Delete(ctx context.Context, id domain.ID) error {
	et := azcore.ETagAny
	_, err := s.client.DeleteEntity(ctx, todosPartition, id.String(), &aztables.DeleteEntityOptions{IfMatch: &et})
	return notFound(err)
}

func notFound(err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return domain.ErrTaskNotFound
	}
	return err
}
