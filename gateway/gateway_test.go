package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/persist/entity"
	apperrors "github.com/kbukum/persist/errors"
	"github.com/kbukum/persist/observability"
	"github.com/kbukum/persist/pipeline"
	"github.com/kbukum/persist/storage"
	"github.com/kbukum/persist/storage/memory"
	"github.com/kbukum/persist/validation"
)

type user struct {
	entity.HookSet `json:"-"`
	Key            string `json:"id,omitempty"`
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email,omitempty" validate:"omitempty,email"`
}

func (u *user) ID() any {
	if u.Key == "" {
		return nil
	}
	return u.Key
}

func (u *user) ToPlainData() entity.PlainData {
	d, _ := entity.Encode(u)
	return d
}

func (u *user) ApplyPlainData(data entity.PlainData, allowNewFields bool) error {
	return entity.Decode(data, u, allowNewFields)
}

func (u *user) Validate() error { return validation.Validate(u) }

var users = entity.ClassFor[user]("user", entity.WithConstructor(func(args ...any) (any, error) {
	u := &user{}
	if len(args) > 0 {
		u.Name, _ = args[0].(string)
	}
	return u, nil
}))

func newGateway(t *testing.T, opts ...Option) (*Gateway, *memory.Store) {
	t.Helper()
	store := memory.New(entity.IDField, nil)
	g, err := New(users, store, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return g, store
}

func mustCreate(t *testing.T, g *Gateway, name string) *user {
	t.Helper()
	e, err := g.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	return e.(*user)
}

func TestNew_Invalid(t *testing.T) {
	store := memory.New("", nil)
	tests := []struct {
		name  string
		class *entity.Class
		store storage.Store
	}{
		{"nil class", nil, store},
		{"not an entity", entity.ClassFor[struct{}]("plain"), store},
		{"nil store", users, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.class, tc.store); !apperrors.HasCode(err, apperrors.ErrCodeInvalidArgument) {
				t.Errorf("expected INVALID_ARGUMENT, got %v", err)
			}
		})
	}
}

func TestGateway_SaveAndFind(t *testing.T) {
	g, store := newGateway(t)
	ctx := context.Background()

	u := mustCreate(t, g, "ann")
	if err := g.Save(ctx, u); err != nil {
		t.Fatal(err)
	}
	if u.Key == "" {
		t.Fatal("Save should apply the generated id")
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 stored record, got %d", store.Len())
	}

	found, err := g.Find(ctx, u.Key)
	if err != nil {
		t.Fatal(err)
	}
	if got := found.(*user); got.Name != "ann" || got.Key != u.Key {
		t.Errorf("unexpected user %+v", got)
	}

	byFilter, err := g.Find(ctx, storage.Filter{"name": "ann"})
	if err != nil || byFilter.(*user).Key != u.Key {
		t.Errorf("Find by filter = %v, %v", byFilter, err)
	}
}

func TestGateway_FindMissing(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()

	_, err := g.Find(ctx, "nope")
	if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}

	e, err := g.Find(ctx, "nope", Optional())
	if err != nil || e != nil {
		t.Errorf("Optional should give (nil, nil), got (%v, %v)", e, err)
	}

	if _, err := g.Find(ctx, nil); !apperrors.HasCode(err, apperrors.ErrCodeInvalidArgument) {
		t.Errorf("expected INVALID_ARGUMENT for a nil id, got %v", err)
	}
}

func TestGateway_Exists(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()
	u := mustCreate(t, g, "ann")
	if err := g.Save(ctx, u); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		idOrFilter any
		want       bool
	}{
		{"id", u.Key, true},
		{"missing id", "other", false},
		{"filter", map[string]any{"name": "ann"}, true},
		{"missing filter", storage.Filter{"name": "bob"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := g.Exists(ctx, tc.idOrFilter)
			if err != nil {
				t.Fatal(err)
			}
			if ok != tc.want {
				t.Errorf("Exists(%v) = %v, want %v", tc.idOrFilter, ok, tc.want)
			}
		})
	}
}

func TestGateway_SaveValidates(t *testing.T) {
	g, store := newGateway(t)
	ctx := context.Background()

	hooks := 0
	valid := mustCreate(t, g, "ann")
	valid.On(entity.BeforeSave, func(context.Context, entity.PlainData) (entity.PlainData, error) {
		hooks++
		return nil, nil
	})
	invalid := mustCreate(t, g, "")

	err := g.Save(ctx, []*user{valid, invalid})
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidArgument) {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
	if appErr, _ := apperrors.AsAppError(err); appErr.Details["index"] != 1 {
		t.Errorf("expected the failing index, got %v", appErr.Details)
	}
	if hooks != 0 || store.Len() != 0 {
		t.Errorf("nothing may run before validation passes: hooks=%d stored=%d", hooks, store.Len())
	}
}

type plainErrUser struct{ user }

func (u *plainErrUser) Validate() error { return errors.New("rejected") }

func TestGateway_SaveValidatePlainError(t *testing.T) {
	g, _ := newGateway(t)
	err := g.Save(context.Background(), &plainErrUser{user{Name: "x"}})
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidArgument) {
		t.Errorf("plain validation errors become INVALID_ARGUMENT, got %v", err)
	}
}

var errBanned = apperrors.InvalidArgument("name is banned")

type bannedUser struct{ user }

func (u *bannedUser) Validate() error { return errBanned }

func TestGateway_SaveValidateSharedError(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := g.Save(ctx, []any{mustCreate(t, g, "ann"), &bannedUser{user{Name: "x"}}})
		appErr, ok := apperrors.AsAppError(err)
		if !ok || appErr.Code != apperrors.ErrCodeInvalidArgument || appErr.Details["index"] != 1 {
			t.Fatalf("run %d: expected INVALID_ARGUMENT at index 1, got %v", i, err)
		}
		if appErr == errBanned {
			t.Fatal("the returned error must be a copy")
		}
	}
	if errBanned.Details != nil {
		t.Errorf("the entity's error value must not change, got details %v", errBanned.Details)
	}
}

func TestGateway_SaveNilEntity(t *testing.T) {
	g, store := newGateway(t)
	err := g.Save(context.Background(), []*user{mustCreate(t, g, "ann"), nil})
	if !apperrors.HasCode(err, apperrors.ErrCodeTypeMismatch) {
		t.Errorf("expected TYPE_MISMATCH for a nil user, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("nothing may be stored, have %d records", store.Len())
	}
}

func TestGateway_SaveMany(t *testing.T) {
	g, store := newGateway(t)
	ctx := context.Background()
	a, b := mustCreate(t, g, "ann"), mustCreate(t, g, "bob")

	if err := g.Save(ctx, pipeline.FromSlice([]*user{a, b})); err != nil {
		t.Fatal(err)
	}
	if a.Key == "" || b.Key == "" || a.Key == b.Key {
		t.Errorf("each user needs its own id: %q %q", a.Key, b.Key)
	}

	a.Name = "anna"
	if err := g.Save(ctx, a); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 {
		t.Errorf("saving an existing user must replace it, have %d records", store.Len())
	}

	found, _ := g.Find(ctx, a.Key)
	if found.(*user).Name != "anna" {
		t.Errorf("expected updated name, got %q", found.(*user).Name)
	}
}

func TestGateway_Delete(t *testing.T) {
	g, store := newGateway(t)
	ctx := context.Background()
	a, b, c := mustCreate(t, g, "ann"), mustCreate(t, g, "bob"), mustCreate(t, g, "cid")
	if err := g.Save(ctx, []*user{a, b, c}); err != nil {
		t.Fatal(err)
	}

	if err := g.Delete(ctx, a); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 left, got %d", store.Len())
	}

	var after []string
	unsaved := mustCreate(t, g, "new")
	for _, u := range []*user{b, c, unsaved} {
		u.On(entity.AfterDelete, func(_ context.Context, d entity.PlainData) (entity.PlainData, error) {
			after = append(after, u.Name)
			return nil, nil
		})
	}
	if err := g.Delete(ctx, []*user{b, unsaved, c}); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}
	if fmt.Sprint(after) != "[bob new cid]" {
		t.Errorf("after-delete should fire for all, got %v", after)
	}
}

func TestGateway_DeleteNotIdentifiable(t *testing.T) {
	g, _ := newGateway(t)
	err := g.Delete(context.Background(), []any{entity.NewRecord(nil), 42})
	if !apperrors.HasCode(err, apperrors.ErrCodeTypeMismatch) {
		t.Errorf("expected TYPE_MISMATCH, got %v", err)
	}
}

func TestGateway_QueryRecords(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()
	var batch []*user
	for _, name := range []string{"cid", "ann", "bob"} {
		batch = append(batch, mustCreate(t, g, name))
	}
	batch[1].Email = "ann@example.com"
	if err := g.Save(ctx, batch); err != nil {
		t.Fatal(err)
	}

	all, err := g.FindAll(ctx, nil, storage.WithSort("name"))
	if err != nil {
		t.Fatal(err)
	}
	entities, err := pipeline.Collect(ctx, all)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entities {
		names = append(names, e.(*user).Name)
	}
	if fmt.Sprint(names) != "[ann bob cid]" {
		t.Errorf("FindAll = %v", names)
	}

	n, err := g.Count(ctx, storage.Filter{"name(not)": "ann"})
	if err != nil || n != 2 {
		t.Errorf("Count = %d, %v", n, err)
	}

	found, err := g.Search(ctx, "example", nil)
	if err != nil {
		t.Fatal(err)
	}
	records, _ := pipeline.Collect(ctx, found)
	if len(records) != 1 || records[0]["name"] != "ann" {
		t.Errorf("Search = %v", records)
	}

	raw, err := g.Fetch(ctx, storage.Filter{"name": "bob"})
	if err != nil {
		t.Fatal(err)
	}
	records, _ = pipeline.Collect(ctx, raw)
	if len(records) != 1 || records[0]["id"] != batch[2].Key {
		t.Errorf("Fetch = %v", records)
	}
}

func TestGateway_StorageErrors(t *testing.T) {
	g, store := newGateway(t)
	ctx := context.Background()
	store.Close()

	if err := g.Save(ctx, mustCreate(t, g, "ann")); !apperrors.HasCode(err, apperrors.ErrCodeInvalidOperation) {
		t.Errorf("expected the store error unchanged, got %v", err)
	}
	if _, err := g.Find(ctx, "x"); err == nil {
		t.Error("expected an error from a closed store")
	}
}

func TestGateway_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	g, _ := newGateway(t, WithTracing(true))
	if err := g.Save(context.Background(), mustCreate(t, g, "ann")); err != nil {
		t.Fatal(err)
	}

	names := map[string]int{}
	for _, s := range exporter.GetSpans() {
		names[s.Name]++
	}
	if names[observability.SpanMapperSave] != 1 || names[observability.SpanStorage] != 1 {
		t.Errorf("expected one mapper and one storage span, got %v", names)
	}
}
