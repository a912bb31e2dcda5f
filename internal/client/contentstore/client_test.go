package contentstore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPin(t *testing.T) {
	var gotKey, gotSecret, gotFile string
	var gotMeta pinMetadata
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pinning/pinFileToIPFS" {
			t.Errorf("путь запроса: %s", r.URL.Path)
		}
		gotKey = r.Header.Get("pinata_api_key")
		gotSecret = r.Header.Get("pinata_secret_api_key")

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("разбор multipart: %v", err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("поле file: %v", err)
		} else {
			data, _ := io.ReadAll(f)
			gotFile = string(data)
			f.Close()
		}
		json.Unmarshal([]byte(r.FormValue("pinataMetadata")), &gotMeta)

		w.Write([]byte(`{"IpfsHash":"cid123","PinSize":9}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key-1", "secret-1", "https://gw.example/ipfs", 5*time.Second, slog.Default())

	cid, err := c.Pin(context.Background(), strings.NewReader("hello-doc"), "doc.jpg",
		map[string]string{"phone": "9876543210"})
	if err != nil {
		t.Fatalf("Pin: %v", err)
	}

	if cid != "cid123" {
		t.Errorf("cid = %q", cid)
	}
	if gotKey != "key-1" || gotSecret != "secret-1" {
		t.Errorf("заголовки авторизации: %q / %q", gotKey, gotSecret)
	}
	if gotFile != "hello-doc" {
		t.Errorf("содержимое file = %q", gotFile)
	}
	if gotMeta.Name != "doc.jpg" || gotMeta.Keyvalues["phone"] != "9876543210" {
		t.Errorf("pinataMetadata: %+v", gotMeta)
	}
}

func TestPinServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "s", "https://gw.example/ipfs", 5*time.Second, slog.Default())
	if _, err := c.Pin(context.Background(), strings.NewReader("x"), "doc.bin", nil); err == nil {
		t.Error("ожидалась ошибка для статуса 429")
	}
}

func TestPinEmptyCID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"IpfsHash":""}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "s", "https://gw.example/ipfs", 5*time.Second, slog.Default())
	if _, err := c.Pin(context.Background(), strings.NewReader("x"), "doc.bin", nil); err == nil {
		t.Error("пустой CID должен быть отклонён")
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ipfs/cid123" {
			t.Errorf("путь запроса: %s", r.URL.Path)
		}
		w.Write([]byte("pinned-bytes"))
	}))
	defer srv.Close()

	c := New("https://api.example", "k", "s", srv.URL+"/ipfs", 5*time.Second, slog.Default())
	resp, err := c.Fetch(context.Background(), "cid123")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if string(data) != "pinned-bytes" {
		t.Errorf("тело = %q", data)
	}
}

func TestFetchGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New("https://api.example", "k", "s", srv.URL, 5*time.Second, slog.Default())
	if _, err := c.Fetch(context.Background(), "gone"); err == nil {
		t.Error("ожидалась ошибка для статуса 404")
	}
}

func TestGatewayURL(t *testing.T) {
	c := New("https://api.example", "k", "s", "https://gw.example/ipfs/", 5*time.Second, slog.Default())
	if got := c.GatewayURL("cid123"); got != "https://gw.example/ipfs/cid123" {
		t.Errorf("GatewayURL = %q", got)
	}
}
