package usersync

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sunvoy-scraper/internal/store"
	"sunvoy-scraper/internal/sunvoy"
	"sunvoy-scraper/internal/sunvoy/sunvoytest"
	"sunvoy-scraper/lib/testutil"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticSessions struct {
	client *sunvoy.Client
	err    error
}

func (s staticSessions) Ensure(ctx context.Context) (*sunvoy.Client, error) {
	return s.client, s.err
}

type recordingWriter struct {
	calls [][]sunvoy.User
}

func (w *recordingWriter) WriteUsers(ctx context.Context, users []sunvoy.User) error {
	w.calls = append(w.calls, users)
	return nil
}

func setupSite(t testing.TB, usersBody, meBody string) staticSessions {
	site := sunvoytest.NewSite(t)
	site.Handle(http.MethodGet, "/internal/users", sunvoytest.JSON(usersBody))
	site.Handle(http.MethodGet, "/internal/me", sunvoytest.JSON(meBody))

	client := sunvoy.NewClient(
		sunvoy.ClientOptions{BaseUrl: site.URL},
		"sunvoy_session=test",
		&testutil.RecordingAPI{},
	)
	return staticSessions{client: client}
}

func TestRunWritesUsersThenCurrentUser(t *testing.T) {
	sessions := setupSite(t,
		`[
			{"id": 1, "name": "Ann", "email": "ann@x.com"},
			{"id": 2, "name": "Bob", "email": "bob@x.com"}
		]`,
		`{"id": 9, "name": "Me", "email": "me@x.com"}`,
	)
	path := filepath.Join(t.TempDir(), "users.json")

	tel := &testutil.RecordingAPI{}
	users, err := NewSyncer(sessions, store.NewFileUsersWriter(path), tel).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID().String()
	}
	require.Equal(t, []string{"1", "2", "9"}, ids)

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	require.JSONEq(t, `[
		{"id": 1, "name": "Ann", "email": "ann@x.com"},
		{"id": 2, "name": "Bob", "email": "bob@x.com"},
		{"id": 9, "name": "Me", "email": "me@x.com"}
	]`, string(contents))

	counts := tel.Reports(testutil.LevelCount)
	require.Len(t, counts, 1)
	require.Equal(t, []any{int64(3)}, counts[0].Params)
}

func TestRunWithNoOtherUsers(t *testing.T) {
	sessions := setupSite(t, `[]`, `{"id": 9, "email": "me@x.com"}`)
	writer := &recordingWriter{}

	users, err := NewSyncer(sessions, writer, &testutil.RecordingAPI{}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, users, 1)
	require.Len(t, writer.calls, 1)
	require.Equal(t, "me@x.com", writer.calls[0][0].Email())
}

func TestRunKeepsDuplicateCurrentUser(t *testing.T) {
	sessions := setupSite(t,
		`[{"id": 9, "email": "me@x.com"}]`,
		`{"id": 9, "email": "me@x.com"}`,
	)
	writer := &recordingWriter{}

	users, err := NewSyncer(sessions, writer, &testutil.RecordingAPI{}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, users, 2)
}

func TestRunValidationFailureWritesNothing(t *testing.T) {
	sessions := setupSite(t,
		`[
			{"id": 1, "email": "ann@x.com"},
			{"id": 2, "name": "No Email"}
		]`,
		`{"id": 9, "email": "me@x.com"}`,
	)
	path := filepath.Join(t.TempDir(), "users.json")
	err := os.WriteFile(path, []byte(`[{"id": 1, "name": "old", "email": "old@x.com"}]`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	tel := &testutil.RecordingAPI{}
	_, err = NewSyncer(sessions, store.NewFileUsersWriter(path), tel).Run(context.Background())
	var validationErr *sunvoy.ValidationError
	require.True(t, errors.As(err, &validationErr), "expected a ValidationError, got %v", err)
	require.Equal(t, "email", validationErr.Field)
	require.True(t, tel.Contains(testutil.LevelBroken, report_syncer_run))

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	require.JSONEq(t, `[{"id": 1, "name": "old", "email": "old@x.com"}]`, string(contents))
}

func TestRunRejectsNonObjectListItems(t *testing.T) {
	sessions := setupSite(t,
		`[1, {"id": 2, "email": "b@x.com"}]`,
		`{"id": 9, "email": "me@x.com"}`,
	)
	writer := &recordingWriter{}

	_, err := NewSyncer(sessions, writer, &testutil.RecordingAPI{}).Run(context.Background())
	var validationErr *sunvoy.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "id", validationErr.Field)
	require.Empty(t, writer.calls)
}

func TestRunSessionFailure(t *testing.T) {
	loginErr := errors.New("login failed")
	writer := &recordingWriter{}

	_, err := NewSyncer(staticSessions{err: loginErr}, writer, &testutil.RecordingAPI{}).Run(context.Background())
	require.ErrorIs(t, err, loginErr)
	require.Empty(t, writer.calls)
}

func TestRunFetchFailure(t *testing.T) {
	// nothing answers, not even the settings page
	site := sunvoytest.NewSite(t)
	client := sunvoy.NewClient(sunvoy.ClientOptions{BaseUrl: site.URL}, "sunvoy_session=test", &testutil.RecordingAPI{})
	writer := &recordingWriter{}

	_, err := NewSyncer(staticSessions{client: client}, writer, &testutil.RecordingAPI{}).Run(context.Background())
	var transportErr *sunvoy.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Empty(t, writer.calls)
}
