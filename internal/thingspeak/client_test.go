package thingspeak

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestClient(srvURL string) *Client {
	return NewClient(Config{
		BaseURL:   srvURL,
		ChannelID: 424242,
		ReadKey:   "RKEY",
		WriteKey:  "WKEY",
	})
}

func TestClient_ReadLast(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"created_at": "2026-08-29T10:00:00Z",
			"entry_id": 1207,
			"field1": "21.5",
			"field5": "0",
			"field6": null,
			"field7": "1"
		}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	f, err := c.ReadLast(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/channels/424242/feeds/last.json" {
		t.Fatalf("wrong path: %s", gotPath)
	}
	if gotQuery.Get("api_key") != "RKEY" {
		t.Fatalf("read key not sent: %v", gotQuery)
	}
	if gotQuery.Get("t") == "" {
		t.Fatalf("cache buster not sent: %v", gotQuery)
	}

	if f.EntryID != 1207 || f.CreatedAt != "2026-08-29T10:00:00Z" {
		t.Fatalf("unexpected feed: %+v", f)
	}
	if f.Field(FieldTemperature) != "21.5" || f.Field(FieldMode) != "1" {
		t.Fatalf("field mapping broken: %+v", f)
	}
	// null fields decode to the empty string
	if f.Field(FieldPressure) != "" {
		t.Fatalf("expected empty pressure, got %q", f.Field(FieldPressure))
	}
}

func TestClient_ReadLast_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ReadLast(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Status != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", fe.Status)
	}
}

func TestClient_ReadLast_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := newTestClient(srv.URL).ReadLast(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestClient_Update(t *testing.T) {
	var gotMethod string
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte("1208\n"))
	}))
	defer srv.Close()

	params := url.Values{}
	params.Set(FieldPump, "1")
	params.Set(FieldMode, "1")
	params.Set("created_at", "2026-08-29T10:00:05Z")

	id, err := newTestClient(srv.URL).Update(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 1208 {
		t.Fatalf("expected entry id 1208, got %d", id)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotQuery.Get("api_key") != "WKEY" {
		t.Fatalf("write key not sent: %v", gotQuery)
	}
	if gotQuery.Get(FieldPump) != "1" || gotQuery.Get("created_at") == "" {
		t.Fatalf("params not forwarded: %v", gotQuery)
	}
}

func TestClient_Update_Rejected(t *testing.T) {
	for _, body := range []string{"0", "-1"} {
		t.Run("id_"+body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Update(context.Background(), url.Values{})
			if !errors.Is(err, ErrWriteRejected) {
				t.Fatalf("expected ErrWriteRejected, got %v", err)
			}
		})
	}
}

func TestClient_Update_GarbageResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>rate limited</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Update(context.Background(), url.Values{})
	if err == nil {
		t.Fatalf("expected an error for a non-numeric response")
	}
	if errors.Is(err, ErrWriteRejected) {
		t.Fatalf("garbage is not a rejection: %v", err)
	}
}
