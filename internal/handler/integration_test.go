package handler_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"testing"
	"time"
)

// apiClient is an HTTP client with a cookie jar bound to one test server.
type apiClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newAPIClient(t *testing.T, base string) *apiClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &apiClient{t: t, base: base, http: &http.Client{Jar: jar}}
}

// do sends a request and decodes a JSON response body into out when out is
// non-nil. It returns the status code.
func (c *apiClient) do(method, path, contentType string, body io.Reader, out any) int {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (c *apiClient) json(method, path string, in, out any) int {
	c.t.Helper()
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(data)
	}
	return c.do(method, path, "application/json", body, out)
}

func (c *apiClient) form(method, path string, fields map[string]string, file []byte, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", "photo.png")
		if err != nil {
			c.t.Fatalf("create form file: %v", err)
		}
		fw.Write(file)
	}
	mw.Close()
	return c.do(method, path, mw.FormDataContentType(), &buf, out)
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// oversizedPNG is a valid 1x1 png whose header claims w x h pixels.
func oversizedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := testPNG(t, 1, 1)
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

type userResponse struct {
	User struct {
		ID        string `json:"id"`
		AccountID string `json:"accountId"`
		Email     string `json:"email"`
		Name      string `json:"name"`
		ImageURL string `json:"imageUrl"`
		ImageID  string `json:"imageId"`
		Bio      string `json:"bio"`
		Saves    []struct {
			ID     string `json:"id"`
			PostID string `json:"postId"`
		} `json:"saves"`
	} `json:"user"`
}

type postBody struct {
	ID        string   `json:"id"`
	CreatorID string   `json:"creatorId"`
	Caption   string   `json:"caption"`
	ImageID   string   `json:"imageId"`
	ImageURL  string   `json:"imageUrl"`
	Tags      []string `json:"tags"`
	Likes     []string `json:"likes"`
}

type postResponse struct {
	Post postBody `json:"post"`
}

type postsResponse struct {
	Posts []postBody `json:"posts"`
}

type feedResponse struct {
	Pages       [][]postBody `json:"pages"`
	HasNextPage bool         `json:"hasNextPage"`
}

func register(t *testing.T, c *apiClient, name, email string) string {
	t.Helper()
	var reg userResponse
	if code := c.json(http.MethodPost, "/api/auth/register", map[string]string{
		"name": name, "username": strings.ToLower(name), "email": email, "password": "password123",
	}, &reg); code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", code)
	}
	if code := c.json(http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": "password123",
	}, nil); code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", code)
	}
	return reg.User.ID
}

func TestIntegration_RegisterLoginMeLogout(t *testing.T) {
	srv := newTestApp(t).server(t)
	c := newAPIClient(t, srv.URL)

	userID := register(t, c, "Integration", "integ@example.com")

	var me userResponse
	if code := c.json(http.MethodGet, "/api/auth/me", nil, &me); code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", code)
	}
	if me.User.ID != userID || !strings.Contains(me.User.ImageURL, "/avatars/initials?name=Integration") {
		t.Fatalf("unexpected me: %+v", me.User)
	}

	if code := c.json(http.MethodPost, "/api/auth/logout", nil, nil); code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", code)
	}
	if code := c.json(http.MethodGet, "/api/auth/me", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("me after logout: expected 401, got %d", code)
	}
}

func TestIntegration_LogoutRevokesBearerToken(t *testing.T) {
	app := newTestApp(t)
	srv := app.server(t)
	token := app.signUp(t, "Revoked", "revoked@example.com")

	call := func(method, path string) int {
		req, _ := http.NewRequest(method, srv.URL+path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := call(http.MethodGet, "/api/auth/me"); code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", code)
	}
	if code := call(http.MethodPost, "/api/auth/logout"); code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", code)
	}
	if code := call(http.MethodGet, "/api/auth/me"); code != http.StatusUnauthorized {
		t.Fatalf("me after logout: expected 401, got %d", code)
	}
}

func TestIntegration_RegisterErrors(t *testing.T) {
	srv := newTestApp(t).server(t)
	c := newAPIClient(t, srv.URL)

	body := map[string]string{"name": "Dup", "username": "dup", "email": "dup@example.com", "password": "password123"}
	if code := c.json(http.MethodPost, "/api/auth/register", body, nil); code != http.StatusCreated {
		t.Fatalf("first register: expected 201, got %d", code)
	}
	if code := c.json(http.MethodPost, "/api/auth/register", body, nil); code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", code)
	}

	body = map[string]string{"name": "Weak", "username": "weak", "email": "weak@example.com", "password": "short"}
	if code := c.json(http.MethodPost, "/api/auth/register", body, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("weak password: expected 422, got %d", code)
	}

	if code := c.json(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "dup@example.com", "password": "wrongpassword",
	}, nil); code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", code)
	}
}

func TestIntegration_PostLifecycle(t *testing.T) {
	srv := newTestApp(t).server(t)
	c := newAPIClient(t, srv.URL)
	userID := register(t, c, "Poster", "poster@example.com")

	// Unauthenticated create is rejected.
	anon := newAPIClient(t, srv.URL)
	if code := anon.form(http.MethodPost, "/api/posts", nil, testPNG(t, 8, 8), nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: expected 401, got %d", code)
	}

	// A non-image upload is rejected.
	if code := c.form(http.MethodPost, "/api/posts", map[string]string{"caption": "x"}, []byte("not an image"), nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("text upload: expected 422, got %d", code)
	}

	var created postResponse
	if code := c.form(http.MethodPost, "/api/posts", map[string]string{
		"caption": "Sunset at the sea", "location": "Coast", "tags": "sun, sea ,evening",
	}, testPNG(t, 40, 20), &created); code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", code)
	}
	post := created.Post
	if post.CreatorID != userID || strings.Join(post.Tags, "|") != "sun|sea|evening" {
		t.Fatalf("unexpected post: %+v", post)
	}

	// The feed, recent list and search see the new post.
	var feed feedResponse
	if code := c.json(http.MethodGet, "/api/posts", nil, &feed); code != http.StatusOK {
		t.Fatalf("feed: expected 200, got %d", code)
	}
	if len(feed.Pages) != 1 || len(feed.Pages[0]) != 1 || !feed.HasNextPage {
		t.Fatalf("unexpected feed: %+v", feed)
	}
	if code := c.json(http.MethodPost, "/api/posts/next", nil, &feed); code != http.StatusOK {
		t.Fatalf("next page: expected 200, got %d", code)
	}
	if len(feed.Pages) != 2 || feed.HasNextPage {
		t.Fatalf("expected an empty second page and no more pages, got %+v", feed)
	}
	if code := c.json(http.MethodPost, "/api/posts/next", nil, &feed); code != http.StatusOK || len(feed.Pages) != 2 {
		t.Fatalf("next page at the end: got %d with %d pages", code, len(feed.Pages))
	}

	var found postsResponse
	if code := c.json(http.MethodGet, "/api/posts/search?q=sunset", nil, &found); code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", code)
	}
	if len(found.Posts) != 1 {
		t.Fatalf("expected 1 search result, got %d", len(found.Posts))
	}
	if code := c.json(http.MethodGet, "/api/posts/search?q=", nil, &found); code != http.StatusOK || len(found.Posts) != 0 {
		t.Fatalf("blank search: got %d with %d posts", code, len(found.Posts))
	}

	// Raw file and preview.
	if code := c.do(http.MethodGet, "/storage/files/"+post.ImageID, "", nil, nil); code != http.StatusOK {
		t.Fatalf("raw file: expected 200, got %d", code)
	}
	previewPath := "/storage/files/" + post.ImageID + "/preview?width=10&height=10&quality=100"
	resp, err := http.Get(srv.URL + previewPath)
	if err != nil {
		t.Fatalf("GET preview: %v", err)
	}
	cfg, format, err := image.DecodeConfig(resp.Body)
	resp.Body.Close()
	if err != nil || format != "png" || cfg.Width != 10 || cfg.Height != 5 {
		t.Fatalf("expected a 10x5 png preview, got %s %dx%d (%v)", format, cfg.Width, cfg.Height, err)
	}

	// Like toggles.
	var liked postResponse
	c.json(http.MethodPost, "/api/posts/"+post.ID+"/like", nil, &liked)
	if len(liked.Post.Likes) != 1 || liked.Post.Likes[0] != userID {
		t.Fatalf("expected one like, got %v", liked.Post.Likes)
	}
	var likedPosts postsResponse
	c.json(http.MethodGet, "/api/users/"+userID+"/liked", nil, &likedPosts)
	if len(likedPosts.Posts) != 1 {
		t.Fatalf("expected 1 liked post, got %d", len(likedPosts.Posts))
	}
	c.json(http.MethodPost, "/api/posts/"+post.ID+"/like", nil, &liked)
	if len(liked.Post.Likes) != 0 {
		t.Fatalf("expected like removed, got %v", liked.Post.Likes)
	}
	c.json(http.MethodGet, "/api/users/"+userID+"/liked", nil, &likedPosts)
	if len(likedPosts.Posts) != 0 {
		t.Fatalf("expected liked posts refetched after unlike, got %d", len(likedPosts.Posts))
	}

	// Update by the creator.
	var updated postResponse
	if code := c.form(http.MethodPut, "/api/posts/"+post.ID, map[string]string{
		"caption": "Edited", "tags": "one",
	}, testPNG(t, 4, 4), &updated); code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", code)
	}
	if updated.Post.Caption != "Edited" || updated.Post.ImageID == post.ImageID {
		t.Fatalf("unexpected update: %+v", updated.Post)
	}
	if code := c.do(http.MethodGet, "/storage/files/"+post.ImageID, "", nil, nil); code != http.StatusNotFound {
		t.Fatalf("replaced image: expected 404, got %d", code)
	}

	var fetched postResponse
	c.json(http.MethodGet, "/api/posts/"+post.ID, nil, &fetched)
	if fetched.Post.Caption != "Edited" {
		t.Fatalf("expected the cached post refetched after update, got %q", fetched.Post.Caption)
	}

	// Another user cannot edit or delete it.
	other := newAPIClient(t, srv.URL)
	register(t, other, "Other", "other@example.com")
	if code := other.form(http.MethodPut, "/api/posts/"+post.ID, map[string]string{"caption": "hijack"}, nil, nil); code != http.StatusNotFound {
		t.Fatalf("foreign update: expected 404, got %d", code)
	}
	if code := other.json(http.MethodDelete, "/api/posts/"+post.ID+"?imageId="+updated.Post.ImageID, nil, nil); code != http.StatusNotFound {
		t.Fatalf("foreign delete: expected 404, got %d", code)
	}

	// Delete needs the image id.
	if code := c.json(http.MethodDelete, "/api/posts/"+post.ID, nil, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("delete without imageId: expected 422, got %d", code)
	}
	if code := c.json(http.MethodDelete, "/api/posts/"+post.ID+"?imageId="+updated.Post.ImageID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", code)
	}
	if code := c.json(http.MethodGet, "/api/posts/"+post.ID, nil, nil); code != http.StatusNotFound {
		t.Fatalf("deleted post: expected 404, got %d", code)
	}
	if code := c.do(http.MethodGet, "/storage/files/"+updated.Post.ImageID, "", nil, nil); code != http.StatusNotFound {
		t.Fatalf("deleted image: expected 404, got %d", code)
	}
}

func TestIntegration_SaveAndUnsave(t *testing.T) {
	srv := newTestApp(t).server(t)
	c := newAPIClient(t, srv.URL)
	register(t, c, "Saver", "saver@example.com")

	var created postResponse
	if code := c.form(http.MethodPost, "/api/posts", map[string]string{"caption": "keep"}, testPNG(t, 4, 4), &created); code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", code)
	}

	var saved struct {
		Save struct {
			ID string `json:"id"`
		} `json:"save"`
	}
	if code := c.json(http.MethodPost, "/api/posts/"+created.Post.ID+"/save", nil, &saved); code != http.StatusCreated {
		t.Fatalf("save: expected 201, got %d", code)
	}
	if code := c.json(http.MethodPost, "/api/posts/"+created.Post.ID+"/save", nil, nil); code != http.StatusConflict {
		t.Fatalf("second save: expected 409, got %d", code)
	}

	var me userResponse
	c.json(http.MethodGet, "/api/auth/me", nil, &me)
	if len(me.User.Saves) != 1 || me.User.Saves[0].PostID != created.Post.ID {
		t.Fatalf("expected the save on the current user, got %+v", me.User.Saves)
	}

	var list postsResponse
	c.json(http.MethodGet, "/api/saved", nil, &list)
	if len(list.Posts) != 1 {
		t.Fatalf("expected 1 saved post, got %d", len(list.Posts))
	}

	other := newAPIClient(t, srv.URL)
	register(t, other, "Thief", "thief@example.com")
	if code := other.json(http.MethodDelete, "/api/saves/"+saved.Save.ID, nil, nil); code != http.StatusNotFound {
		t.Fatalf("foreign unsave: expected 404, got %d", code)
	}

	if code := c.json(http.MethodDelete, "/api/saves/"+saved.Save.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("unsave: expected 204, got %d", code)
	}
	c.json(http.MethodGet, "/api/saved", nil, &list)
	if len(list.Posts) != 0 {
		t.Fatalf("expected saved posts refetched after unsave, got %d", len(list.Posts))
	}
	c.json(http.MethodGet, "/api/auth/me", nil, &me)
	if len(me.User.Saves) != 0 {
		t.Fatalf("expected current user refetched after unsave, got %d saves", len(me.User.Saves))
	}
}

func TestIntegration_LikesAreOwnedByTheirUser(t *testing.T) {
	srv := newTestApp(t).server(t)
	owner := newAPIClient(t, srv.URL)
	ownerID := register(t, owner, "Owner", "owner@example.com")
	fan := newAPIClient(t, srv.URL)
	fanID := register(t, fan, "Fan", "fan@example.com")

	var created postResponse
	if code := owner.form(http.MethodPost, "/api/posts", map[string]string{"caption": "likes"}, testPNG(t, 4, 4), &created); code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", code)
	}
	likesPath := "/api/posts/" + created.Post.ID + "/likes"

	// Liking on behalf of someone else is refused.
	if code := fan.json(http.MethodPut, likesPath, map[string][]string{"likes": {ownerID}}, nil); code != http.StatusForbidden {
		t.Fatalf("forged like: expected 403, got %d", code)
	}
	if code := fan.json(http.MethodPut, likesPath, map[string][]string{"likes": {fanID, "ghost"}}, nil); code != http.StatusForbidden {
		t.Fatalf("like for an unknown user: expected 403, got %d", code)
	}

	var liked postResponse
	if code := fan.json(http.MethodPut, likesPath, map[string][]string{"likes": {fanID}}, &liked); code != http.StatusOK {
		t.Fatalf("own like: expected 200, got %d", code)
	}
	if len(liked.Post.Likes) != 1 || liked.Post.Likes[0] != fanID {
		t.Fatalf("expected the fan's like, got %v", liked.Post.Likes)
	}

	// Removing someone else's like is refused too.
	if code := owner.json(http.MethodPut, likesPath, map[string][]string{"likes": {}}, nil); code != http.StatusForbidden {
		t.Fatalf("removing a foreign like: expected 403, got %d", code)
	}
	anon := newAPIClient(t, srv.URL)
	if code := anon.json(http.MethodPut, likesPath, map[string][]string{"likes": {}}, nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous likes: expected 401, got %d", code)
	}

	// likedByMe is only reported to a signed-in caller.
	var view map[string]any
	fan.json(http.MethodGet, "/api/posts/"+created.Post.ID, nil, &view)
	if view["likedByMe"] != true {
		t.Fatalf("expected likedByMe true for the fan, got %v", view["likedByMe"])
	}
	view = nil
	owner.json(http.MethodGet, "/api/posts/"+created.Post.ID, nil, &view)
	if view["likedByMe"] != false {
		t.Fatalf("expected likedByMe false for the owner, got %v", view["likedByMe"])
	}
	view = nil
	if code := anon.json(http.MethodGet, "/api/posts/"+created.Post.ID, nil, &view); code != http.StatusOK {
		t.Fatalf("anonymous get: expected 200, got %d", code)
	}
	if _, ok := view["likedByMe"]; ok {
		t.Fatalf("expected no likedByMe for an anonymous caller, got %v", view)
	}
}

func TestIntegration_DeletedPostLeavesLikedAndSavedLists(t *testing.T) {
	srv := newTestApp(t).server(t)
	owner := newAPIClient(t, srv.URL)
	register(t, owner, "Owner", "owner@example.com")
	fan := newAPIClient(t, srv.URL)
	fanID := register(t, fan, "Fan", "fan@example.com")

	var created postResponse
	if code := owner.form(http.MethodPost, "/api/posts", map[string]string{"caption": "brief"}, testPNG(t, 4, 4), &created); code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", code)
	}
	fan.json(http.MethodPost, "/api/posts/"+created.Post.ID+"/like", nil, nil)
	if code := fan.json(http.MethodPost, "/api/posts/"+created.Post.ID+"/save", nil, nil); code != http.StatusCreated {
		t.Fatalf("save: expected 201, got %d", code)
	}

	// Warm the cached lists.
	var list postsResponse
	fan.json(http.MethodGet, "/api/users/"+fanID+"/liked", nil, &list)
	if len(list.Posts) != 1 {
		t.Fatalf("expected 1 liked post, got %d", len(list.Posts))
	}
	fan.json(http.MethodGet, "/api/saved", nil, &list)
	if len(list.Posts) != 1 {
		t.Fatalf("expected 1 saved post, got %d", len(list.Posts))
	}
	var me userResponse
	fan.json(http.MethodGet, "/api/auth/me", nil, &me)
	if len(me.User.Saves) != 1 {
		t.Fatalf("expected 1 save on the current user, got %d", len(me.User.Saves))
	}

	if code := owner.json(http.MethodDelete, "/api/posts/"+created.Post.ID+"?imageId="+created.Post.ImageID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", code)
	}

	fan.json(http.MethodGet, "/api/users/"+fanID+"/liked", nil, &list)
	if len(list.Posts) != 0 {
		t.Fatalf("deleted post still in liked posts: %+v", list.Posts)
	}
	fan.json(http.MethodGet, "/api/saved", nil, &list)
	if len(list.Posts) != 0 {
		t.Fatalf("deleted post still in saved posts: %+v", list.Posts)
	}
	fan.json(http.MethodGet, "/api/auth/me", nil, &me)
	if len(me.User.Saves) != 0 {
		t.Fatalf("deleted post still saved on the current user: %+v", me.User.Saves)
	}
}

func TestIntegration_OversizedImageRejected(t *testing.T) {
	srv := newTestApp(t).server(t)
	c := newAPIClient(t, srv.URL)
	register(t, c, "Bomber", "bomber@example.com")

	if code := c.form(http.MethodPost, "/api/posts", map[string]string{"caption": "boom"}, oversizedPNG(t, 50000, 50000), nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("oversized image: expected 422, got %d", code)
	}
	var feed feedResponse
	c.json(http.MethodGet, "/api/posts", nil, &feed)
	if len(feed.Pages) != 1 || len(feed.Pages[0]) != 0 {
		t.Fatalf("expected no post stored, got %+v", feed.Pages)
	}
}

func TestIntegration_UsersAndProfileUpdate(t *testing.T) {
	srv := newTestApp(t).server(t)
	c := newAPIClient(t, srv.URL)
	aliceID := register(t, c, "Alice", "alice@example.com")
	other := newAPIClient(t, srv.URL)
	bobID := register(t, other, "Bob", "bob@example.com")

	var users struct {
		Users []struct {
			ID string `json:"id"`
		} `json:"users"`
	}
	if code := c.json(http.MethodGet, "/api/users?limit=1", nil, &users); code != http.StatusOK {
		t.Fatalf("users: expected 200, got %d", code)
	}
	if len(users.Users) != 1 || users.Users[0].ID != bobID {
		t.Fatalf("expected newest user first, got %+v", users.Users)
	}
	c.json(http.MethodGet, "/api/users?limit=1&after="+bobID, nil, &users)
	if len(users.Users) != 1 || users.Users[0].ID != aliceID {
		t.Fatalf("expected the next page to hold alice, got %+v", users.Users)
	}
	if code := c.json(http.MethodGet, "/api/users?limit=zero", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", code)
	}

	if code := c.form(http.MethodPut, "/api/users/"+bobID, map[string]string{"name": "Mallory"}, nil, nil); code != http.StatusForbidden {
		t.Fatalf("foreign profile update: expected 403, got %d", code)
	}

	var updated userResponse
	if code := c.form(http.MethodPut, "/api/users/"+aliceID, map[string]string{
		"name": "Alice Liddell", "bio": "down the rabbit hole",
	}, testPNG(t, 6, 6), &updated); code != http.StatusOK {
		t.Fatalf("profile update: expected 200, got %d", code)
	}
	if updated.User.ImageID == "" || updated.User.Bio != "down the rabbit hole" {
		t.Fatalf("unexpected profile: %+v", updated.User)
	}

	var me userResponse
	c.json(http.MethodGet, "/api/auth/me", nil, &me)
	if me.User.Name != "Alice Liddell" {
		t.Fatalf("expected current user refetched after update, got %q", me.User.Name)
	}
	if me.User.Email != "alice@example.com" || me.User.AccountID == "" {
		t.Fatalf("expected own email and account on /me, got %+v", me.User)
	}
	if updated.User.Email != "alice@example.com" {
		t.Fatalf("expected own email on the update response, got %q", updated.User.Email)
	}

	var profile userResponse
	other.json(http.MethodGet, "/api/users/"+aliceID, nil, &profile)
	if profile.User.ImageID != updated.User.ImageID {
		t.Fatalf("expected new avatar on the profile, got %q", profile.User.ImageID)
	}
	if profile.User.Email != "" || profile.User.AccountID != "" {
		t.Fatalf("public profile exposes account details: %+v", profile.User)
	}

	var raw struct {
		Users []map[string]any `json:"users"`
	}
	other.json(http.MethodGet, "/api/users", nil, &raw)
	for _, u := range raw.Users {
		if _, ok := u["email"]; ok {
			t.Fatalf("user list exposes email: %v", u)
		}
		if _, ok := u["accountId"]; ok {
			t.Fatalf("user list exposes accountId: %v", u)
		}
	}
}

func TestIntegration_Avatar(t *testing.T) {
	srv := newTestApp(t).server(t)

	resp, err := http.Get(srv.URL + "/avatars/initials?name=Ada+Lovelace&project=test")
	if err != nil {
		t.Fatalf("GET avatar: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.Header.Get("Content-Type") != "image/svg+xml" {
		t.Fatalf("expected svg, got %s", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(body), ">AL</text>") {
		t.Fatalf("expected initials in avatar, got %s", body)
	}
}

func TestIntegration_EventsStream(t *testing.T) {
	app := newTestApp(t)
	srv := app.server(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	c := newAPIClient(t, srv.URL)
	register(t, c, "Eve", "eve@example.com")

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "invalidation") && strings.Contains(line, "getUsers") {
			return
		}
	}
	t.Fatalf("expected an invalidation event for getUsers, stream ended: %v", scanner.Err())
}

func TestIntegration_EventsStreamHidesSessionTokens(t *testing.T) {
	app := newTestApp(t)
	srv := app.server(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	token := app.signUp(t, "Quiet", "quiet@example.com")
	authed, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/auth/logout", nil)
	authed.Header.Set("Authorization", "Bearer "+token)
	out, err := http.DefaultClient.Do(authed)
	if err != nil {
		t.Fatalf("POST logout: %v", err)
	}
	out.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, token) {
			t.Fatalf("event stream leaked a session token: %s", line)
		}
		if strings.Contains(line, "removed") && strings.Contains(line, "getCurrentUser") {
			return
		}
	}
	t.Fatalf("expected a removed event for getCurrentUser, stream ended: %v", scanner.Err())
}
