package poolselect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mediamirror/mediamirror/internal/fetch"
)

func TestSelectReturnsCandidateWithSentinel(t *testing.T) {
	placeholder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("please wait, site is being provisioned"))
	}))
	defer placeholder.Close()

	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("welcome: 每日更新 and more"))
	}))
	defer live.Close()

	f := fetch.New(4, nil)
	got, err := Select(context.Background(), f, []string{placeholder.URL, live.URL}, "每日更新")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != live.URL {
		t.Errorf("Select = %q, want %q", got, live.URL)
	}
}

func TestSelectSkipsUnreachableCandidates(t *testing.T) {
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("每日更新"))
	}))
	defer live.Close()

	f := fetch.New(4, nil)
	got, err := Select(context.Background(), f, []string{"http://127.0.0.1:1", live.URL}, "每日更新")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != live.URL {
		t.Errorf("Select = %q, want %q", got, live.URL)
	}
}

func TestSelectReturnsErrorWhenNoneQualify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("placeholder page"))
	}))
	defer srv.Close()

	f := fetch.New(4, nil)
	_, err := Select(context.Background(), f, []string{srv.URL}, "每日更新")
	if err != ErrNoneAvailable {
		t.Fatalf("Select error = %v, want ErrNoneAvailable", err)
	}
}

func TestSelectLiteAcceptsAny200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("placeholder page"))
	}))
	defer srv.Close()

	f := fetch.New(4, nil)
	got, err := SelectLite(context.Background(), f, []string{srv.URL})
	if err != nil {
		t.Fatalf("SelectLite: %v", err)
	}
	if got != srv.URL {
		t.Errorf("SelectLite = %q, want %q", got, srv.URL)
	}
}
