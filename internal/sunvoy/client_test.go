package sunvoy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sunvoy-scraper/internal/sunvoy/sunvoytest"
	"sunvoy-scraper/lib/testutil"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testToken Token = "sunvoy_session=test"

func setupClient(t testing.TB) (*sunvoytest.Site, *Client, *testutil.RecordingAPI) {
	site := sunvoytest.NewSite(t)
	tel := &testutil.RecordingAPI{}
	client := NewClient(ClientOptions{BaseUrl: site.URL}, testToken, tel)
	return site, client, tel
}

func TestFetchCurrentUserStopsAtFirstValidEndpoint(t *testing.T) {
	site, client, _ := setupClient(t)
	site.Handle(http.MethodGet, "/internal/me", sunvoytest.Status(http.StatusNotFound))
	site.Handle(http.MethodGet, "/api/users/me", sunvoytest.JSON(`{"id": 9, "name": "Ann", "email": "ann@x.com"}`))
	site.Handle(http.MethodGet, "/me", sunvoytest.JSON(`{"id": 10, "email": "other@x.com"}`))

	user, err := client.FetchCurrentUser(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	expected := RawUser{"id": json.Number("9"), "name": "Ann", "email": "ann@x.com"}
	if diff := cmp.Diff(expected, user); diff != "" {
		t.Fatalf("unexpected user (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"/internal/me", "/api/users/me"}, site.Paths(http.MethodGet))
	require.Equal(t, 0, site.Count(http.MethodGet, settingsPage))

	for _, req := range site.Requests() {
		require.Equal(t, testToken.String(), req.Cookie)
		require.Equal(t, "application/json", req.Accept)
	}
}

func TestFetchCurrentUserSkipsInvalidAnswers(t *testing.T) {
	site, client, tel := setupClient(t)
	site.Handle(http.MethodGet, "/internal/me", sunvoytest.JSON(`{"id": 0, "email": "zero@x.com"}`))
	site.Handle(http.MethodGet, "/api/users/me", sunvoytest.JSON(`{"user": {"id": 1}}`))
	site.Handle(http.MethodGet, "/me", sunvoytest.HTML(`<html>please log in</html>`))
	site.Handle(http.MethodGet, "/settings/me", sunvoytest.Status(http.StatusInternalServerError))
	site.Handle(http.MethodGet, "/user", sunvoytest.JSON(`{"id": "u-1", "email": "last@x.com"}`))

	user, err := client.FetchCurrentUser(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, RawUser{"id": "u-1", "email": "last@x.com"}, user)
	require.Equal(t, currentUserEndpoints, site.Paths(http.MethodGet))
	require.Len(t, tel.Reports(testutil.LevelWarning), 4)
}

func TestFetchCurrentUserFallsBackToSettings(t *testing.T) {
	site, client, _ := setupClient(t)
	site.Handle(http.MethodGet, settingsPage, sunvoytest.HTML(`<html><head>
		<meta name="user.id" content="7">
		<meta name="user.email" content="z@z.com">
	</head></html>`))

	user, err := client.FetchCurrentUser(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, RawUser{"id": "7", "email": "z@z.com"}, user)
	paths := site.Paths(http.MethodGet)
	require.Equal(t, append(append([]string{}, currentUserEndpoints...), settingsPage), paths)

	requests := site.Requests()
	require.Equal(t, "text/html", requests[len(requests)-1].Accept)
}

func TestFetchCurrentUserFailures(t *testing.T) {
	t.Run("settings page unreachable", func(t *testing.T) {
		_, client, tel := setupClient(t)

		_, err := client.FetchCurrentUser(context.Background())
		var transportErr *TransportError
		require.True(t, errors.As(err, &transportErr), "expected a TransportError, got %v", err)
		require.Equal(t, settingsPage, transportErr.Endpoint)
		require.Equal(t, http.StatusNotFound, transportErr.Status)
		require.True(t, tel.Contains(testutil.LevelBroken, report_client_fetch_current_user))
	})

	t.Run("settings page without user data", func(t *testing.T) {
		site, client, _ := setupClient(t)
		site.Handle(http.MethodGet, settingsPage, sunvoytest.HTML(`<html><body>Settings</body></html>`))

		_, err := client.FetchCurrentUser(context.Background())
		var extractionErr *ExtractionError
		require.ErrorAs(t, err, &extractionErr)
		require.Equal(t, CurrentUserTarget.Key, extractionErr.Target)
	})
}

func TestFetchAllUsers(t *testing.T) {
	site, client, tel := setupClient(t)
	site.Handle(http.MethodGet, "/internal/users", sunvoytest.JSON(`{"users": [{"id": 1}]}`))
	site.Handle(http.MethodGet, "/api/users", sunvoytest.Status(http.StatusForbidden))
	site.Handle(http.MethodGet, "/users", sunvoytest.JSON(`[
		{"id": 1, "name": "Ann", "email": "ann@x.com"},
		{"id": 2, "name": "Bob", "email": "bob@x.com"}
	]`))

	users, err := client.FetchAllUsers(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	expected := []RawUser{
		{"id": json.Number("1"), "name": "Ann", "email": "ann@x.com"},
		{"id": json.Number("2"), "name": "Bob", "email": "bob@x.com"},
	}
	if diff := cmp.Diff(expected, users); diff != "" {
		t.Fatalf("unexpected users (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"/internal/users", "/api/users", "/users"}, site.Paths(http.MethodGet))

	counts := tel.Reports(testutil.LevelCount)
	require.Len(t, counts, 1)
	require.Equal(t, []any{int64(2)}, counts[0].Params)
}

func TestFetchAllUsersAcceptsAnyArray(t *testing.T) {
	site, client, _ := setupClient(t)
	site.Handle(http.MethodGet, "/internal/users", sunvoytest.JSON(`[1, {"id": 2, "email": "b@x.com"}]`))
	site.Handle(http.MethodGet, "/api/users", sunvoytest.JSON(`[{"id": 5, "email": "e@x.com"}]`))

	users, err := client.FetchAllUsers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, []string{"/internal/users"}, site.Paths(http.MethodGet))
	require.Len(t, users, 2)
	require.Empty(t, users[0])
	require.Equal(t, RawUser{"id": json.Number("2"), "email": "b@x.com"}, users[1])

	// items that are not objects are caught by validation
	_, err = NewUser(users[0])
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestFetchAllUsersAcceptsEmptyEndpointList(t *testing.T) {
	site, client, _ := setupClient(t)
	site.Handle(http.MethodGet, "/internal/users", sunvoytest.JSON(`[]`))

	users, err := client.FetchAllUsers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, users)
	require.Equal(t, []string{"/internal/users"}, site.Paths(http.MethodGet))
}

func TestFetchAllUsersFallsBackToSettings(t *testing.T) {
	site, client, _ := setupClient(t)
	site.Handle(http.MethodGet, settingsPage, sunvoytest.HTML(`<table class="users"><tbody>
		<tr data-user-id="1" data-user-email="ann@x.com"><td class="user-name">Ann</td></tr>
	</tbody></table>`))

	users, err := client.FetchAllUsers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, []RawUser{{"id": "1", "name": "Ann", "email": "ann@x.com"}}, users)
	require.Equal(t, append(append([]string{}, allUsersEndpoints...), settingsPage), site.Paths(http.MethodGet))
}

func TestFetchAllUsersRejectsEmptyFallback(t *testing.T) {
	site, client, _ := setupClient(t)
	site.Handle(http.MethodGet, settingsPage, sunvoytest.HTML(
		`<script id="__NEXT_DATA__" type="application/json">{"props": {"users": []}}</script>`,
	))

	_, err := client.FetchAllUsers(context.Background())
	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	require.Equal(t, UsersTarget.Key, extractionErr.Target)
	require.Equal(t, settingsPage, extractionErr.Page)
}

func TestClientWithoutTokenSendsEmptyCookie(t *testing.T) {
	site := sunvoytest.NewSite(t)
	site.Handle(http.MethodGet, "/internal/me", sunvoytest.JSON(`{"id": 1, "email": "a@x.com"}`))
	client := NewClient(ClientOptions{BaseUrl: site.URL}, "", &testutil.RecordingAPI{})

	_, err := client.FetchCurrentUser(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	req := site.Requests()[0]
	require.True(t, req.HasCookie)
	require.Equal(t, "", req.Cookie)
}
