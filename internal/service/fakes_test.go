package service_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/png"
	"io"
	"log/slog"
	"sync"

	"github.com/msomdec/snapgram/internal/domain"
)

var errBackend = errors.New("backend unavailable")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pngBytes is an encoded 2x2 PNG.
var pngBytes = func() []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()

// pngClaiming returns pngBytes with its header rewritten to claim w x h
// pixels.
func pngClaiming(w, h uint32) []byte {
	out := bytes.Clone(pngBytes)
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func pngUpload() *domain.Upload {
	return &domain.Upload{Filename: "photo.png", ContentType: "image/png", Data: pngBytes}
}

// fakeFiles counts every call so tests can assert exactly-once cleanup.
type fakeFiles struct {
	mu       sync.Mutex
	stored   map[string][]byte
	saves    int
	deletes  map[string]int
	failSave bool
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{stored: map[string][]byte{}, deletes: map[string]int{}}
}

func (f *fakeFiles) Save(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.failSave {
		return errBackend
	}
	f.stored[key] = data
	return nil
}

func (f *fakeFiles) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.stored[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (f *fakeFiles) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes[key]++
	delete(f.stored, key)
	return nil
}

func (f *fakeFiles) totalDeletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.deletes {
		n += c
	}
	return n
}

// fakePosts is an in-memory post repository that counts calls.
type fakePosts struct {
	mu         sync.Mutex
	posts      map[string]*domain.Post
	calls      int
	failCreate bool
	failUpdate bool
	searches   []string
}

func newFakePosts() *fakePosts {
	return &fakePosts{posts: map[string]*domain.Post{}}
}

func (f *fakePosts) call() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakePosts) Create(ctx context.Context, p *domain.Post) error {
	f.call()
	if f.failCreate {
		return errBackend
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = domain.NewID()
	}
	cp := *p
	cp.Likes = []string{}
	f.posts[p.ID] = &cp
	return nil
}

func (f *fakePosts) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	f.call()
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePosts) Update(ctx context.Context, p *domain.Post) error {
	f.call()
	if f.failUpdate {
		return errBackend
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.posts[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	existing.Caption, existing.ImageID, existing.ImageURL = p.Caption, p.ImageID, p.ImageURL
	existing.Location, existing.Tags = p.Location, p.Tags
	return nil
}

func (f *fakePosts) Delete(ctx context.Context, id string) error {
	f.call()
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.posts, id)
	return nil
}

func (f *fakePosts) ListRecent(ctx context.Context, limit int) ([]domain.Post, error) {
	f.call()
	return nil, nil
}

func (f *fakePosts) ListByUpdated(ctx context.Context, limit int, after string) ([]domain.Post, error) {
	f.call()
	return nil, nil
}

func (f *fakePosts) Search(ctx context.Context, term string) ([]domain.Post, error) {
	f.call()
	f.mu.Lock()
	f.searches = append(f.searches, term)
	f.mu.Unlock()
	return nil, nil
}

func (f *fakePosts) ListByCreator(ctx context.Context, id string) ([]domain.Post, error) {
	f.call()
	return nil, nil
}

func (f *fakePosts) ListLikedBy(ctx context.Context, id string) ([]domain.Post, error) {
	f.call()
	return nil, nil
}

func (f *fakePosts) ListSavedBy(ctx context.Context, id string) ([]domain.Post, error) {
	f.call()
	return nil, nil
}

func (f *fakePosts) SetLikes(ctx context.Context, postID string, userIDs []string) (*domain.Post, error) {
	f.call()
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p.Likes = append([]string{}, userIDs...)
	cp := *p
	return &cp, nil
}

func (f *fakePosts) ToggleLike(ctx context.Context, postID, userID string) (*domain.Post, error) {
	f.call()
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for i, id := range p.Likes {
		if id == userID {
			p.Likes = append(p.Likes[:i:i], p.Likes[i+1:]...)
			cp := *p
			return &cp, nil
		}
	}
	p.Likes = append(p.Likes, userID)
	cp := *p
	return &cp, nil
}

// fakeUsers records user writes; everything else is unused by the tests
// that need it.
type fakeUsers struct {
	mu         sync.Mutex
	creates    int
	updates    int
	failCreate bool
	failUpdate bool
	users      map[string]*domain.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{users: map[string]*domain.User{}} }

func (f *fakeUsers) Create(ctx context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failCreate {
		return errBackend
	}
	if u.ID == "" {
		u.ID = domain.NewID()
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByAccountID(ctx context.Context, accountID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.AccountID == accountID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUsers) List(ctx context.Context, opts domain.UserListOptions) ([]domain.User, error) {
	return nil, nil
}

func (f *fakeUsers) Update(ctx context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.failUpdate {
		return errBackend
	}
	if _, ok := f.users[u.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	creates  int
}

func (f *fakeAccounts) Create(ctx context.Context, a *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	a.ID = domain.NewID()
	cp := *a
	f.accounts[a.ID] = &cp
	return nil
}

func (f *fakeAccounts) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeAccounts) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// fakeDB wires the fakes into a domain.Database. Sessions and saves are not
// exercised through it.
type fakeDB struct {
	accounts *fakeAccounts
	users    *fakeUsers
	posts    *fakePosts
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		accounts: &fakeAccounts{accounts: map[string]*domain.Account{}},
		users:    newFakeUsers(),
		posts:    newFakePosts(),
	}
}

func (d *fakeDB) Migrate(ctx context.Context) error  { return nil }
func (d *fakeDB) Ping(ctx context.Context) error     { return nil }
func (d *fakeDB) Close() error                       { return nil }
func (d *fakeDB) Accounts() domain.AccountRepository { return d.accounts }
func (d *fakeDB) Sessions() domain.SessionRepository { return nil }
func (d *fakeDB) Users() domain.UserRepository       { return d.users }
func (d *fakeDB) Posts() domain.PostRepository       { return d.posts }
func (d *fakeDB) Saves() domain.SaveRepository       { return nil }
