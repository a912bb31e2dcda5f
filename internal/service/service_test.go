package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avinashDevlop/AgriLinkProject/internal/client/ledger"
	"github.com/avinashDevlop/AgriLinkProject/internal/client/objectstore"
	"github.com/avinashDevlop/AgriLinkProject/internal/domain/model"
	"github.com/avinashDevlop/AgriLinkProject/internal/intake"
	"github.com/avinashDevlop/AgriLinkProject/internal/storage/index"
	"github.com/avinashDevlop/AgriLinkProject/internal/storage/journal"
	"github.com/avinashDevlop/AgriLinkProject/internal/storage/profilestore"
)

// fakeObjectStore — двойник объектного хранилища.
type fakeObjectStore struct {
	mu    sync.Mutex
	err   error
	block chan struct{} // если задан, Put ждёт закрытия канала либо отмены контекста
	calls int
}

func (f *fakeObjectStore) Put(ctx context.Context, objectPath string, r io.Reader, contentType string, size int64, progress objectstore.ProgressFunc) (string, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	if progress != nil {
		progress(1.0)
	}
	return "https://objects.test/v0/b/bucket/o/" + objectPath + "?alt=media&token=tok", nil
}

func (f *fakeObjectStore) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// fakeContentStore — двойник контент-хранилища: запоминает
// закреплённые байты по выданному CID.
type fakeContentStore struct {
	mu     sync.Mutex
	err    error
	pinned map[string][]byte
	seq    int
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{pinned: make(map[string][]byte)}
}

func (f *fakeContentStore) Pin(ctx context.Context, r io.Reader, filename string, keyvalues map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.seq++
	cid := fmt.Sprintf("bafytest%04d", f.seq)
	f.pinned[cid] = data
	return cid, nil
}

func (f *fakeContentStore) GatewayURL(cid string) string {
	return "https://gateway.test/ipfs/" + cid
}

func (f *fakeContentStore) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// fakeFetcher — двойник скачивания удалённой копии.
// tamper имитирует подмену содержимого: первый байт инвертируется.
type fakeFetcher struct {
	store  *fakeContentStore
	err    error
	tamper bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, cid string) (*http.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.store.mu.Lock()
	data, ok := f.store.pinned[cid]
	f.store.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("cid %s не найден", cid)
	}
	body := make([]byte, len(data))
	copy(body, data)
	if f.tamper && len(body) > 0 {
		body[0] ^= 0xff
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}, nil
}

// fakeLedger — двойник реестра аттестаций.
type fakeLedger struct {
	att     *ledger.Attestation
	err     error
	enabled bool
}

func (f *fakeLedger) Enabled() bool { return f.enabled }

func (f *fakeLedger) Attest(ctx context.Context, documentHash, identity string) (*ledger.Attestation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.att, nil
}

// testEnv — полное тестовое окружение сервисного слоя.
type testEnv struct {
	reg      *Registry
	jrn      *journal.Journal
	in       *intake.Intake
	idx      *index.Index
	pstore   *profilestore.Store
	uploads  *DualUploadService
	profiles *ProfileService
	vs       *VerifyService

	objects  *fakeObjectStore
	contents *fakeContentStore
	fetcher  *fakeFetcher
	ldg      *fakeLedger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	in, err := intake.New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("Ошибка создания Intake: %v", err)
	}
	jrn, err := journal.New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("Ошибка создания журнала: %v", err)
	}
	pstore, err := profilestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания хранилища профилей: %v", err)
	}
	idx := index.New()
	if err := idx.BuildFromStore(pstore); err != nil {
		t.Fatalf("Ошибка построения индекса: %v", err)
	}

	env := &testEnv{
		reg:      NewRegistry(),
		jrn:      jrn,
		in:       in,
		idx:      idx,
		pstore:   pstore,
		objects:  &fakeObjectStore{},
		contents: newFakeContentStore(),
		ldg: &fakeLedger{
			enabled: true,
			att: &ledger.Attestation{
				TransactionID: "0xabc123",
				ExplorerURL:   "https://explorer.test/tx/0xabc123",
				Network:       "testnet",
			},
		},
	}
	env.fetcher = &fakeFetcher{store: env.contents}

	env.uploads = NewDualUploadService(env.reg, jrn, in, env.objects, env.contents, time.Minute, logger)
	env.profiles = NewProfileService(pstore, idx, nil, logger)
	env.vs = NewVerifyService(env.reg, jrn, in, env.uploads, env.profiles,
		env.fetcher, env.ldg, time.Minute, logger)

	return env
}

// testIdentity — идентичность фермера для тестов.
func testIdentity() model.Identity {
	return model.Identity{
		UserType: model.UserFarmer,
		State:    "ap",
		District: "guntur",
		Phone:    "9912345678",
	}
}

// submit проводит документ через загрузочную часть пайплайна.
func (env *testEnv) submit(t *testing.T, content string) *DocumentStatus {
	t.Helper()

	status, opErr := env.vs.Submit(context.Background(), intake.Source{
		Kind:         model.SourceFile,
		DocumentKind: "land_record",
		Reader:       strings.NewReader(content),
	}, testIdentity(), "test")
	if opErr != nil {
		t.Fatalf("Submit вернул ошибку: %v", opErr)
	}
	return status
}
