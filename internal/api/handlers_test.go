package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-duochat/internal/config"
	"github.com/npezzotti/go-duochat/internal/database"
	"github.com/npezzotti/go-duochat/internal/fieldcrypt"
	"github.com/npezzotti/go-duochat/internal/media"
	"github.com/npezzotti/go-duochat/internal/presence"
	"github.com/npezzotti/go-duochat/internal/server"
	"github.com/npezzotti/go-duochat/internal/stats"
	"github.com/npezzotti/go-duochat/internal/testutil"
	"github.com/npezzotti/go-duochat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const testPassword = "Passw0rd!"

// findCookie is a helper function to find a cookie by name in the response recorder.
// It returns the cookie if found, or nil if not found.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func withUser(r *http.Request, userId string) *http.Request {
	return r.WithContext(WithUserId(r.Context(), userId))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ApiError {
	t.Helper()
	var errResp ApiError
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return errResp
}

// multipartBody builds a form with the given fields and, when filename is
// set, a file part named fileField.
func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(content)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return buf, mw.FormDataContentType()
}

func newMockApp(t *testing.T, db *database.MockChatRepository) *GoChatApp {
	return NewGoChatApp(http.NewServeMux(), testutil.TestLogger(t), nil, db, nil, &config.Config{
		SigningKey: []byte("test-signing-key"),
	})
}

type testApp struct {
	*GoChatApp
	db       *database.MemoryChatRepository
	mediaDir string
	alice    types.User
	bob   types.User
}

// newTestApp wires the handlers to a running chat server over an
// in-memory store holding two accounts.
func newTestApp(t *testing.T) *testApp {
	logger := testutil.TestLogger(t)
	db := database.NewMemoryChatRepository(fieldcrypt.NopCodec{})

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	cs, err := server.NewChatServer(logger, db, presence.NewRegistry(logger, database.NewPresenceMirror(db)), su, nil)
	if err != nil {
		t.Fatalf("new chat server: %v", err)
	}
	go cs.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cs.Shutdown(ctx); err != nil {
			t.Errorf("chat server shutdown: %v", err)
		}
	})

	mediaDir := t.TempDir()
	store, err := media.NewStore(mediaDir)
	if err != nil {
		t.Fatalf("new media store: %v", err)
	}

	app := &testApp{
		GoChatApp: NewGoChatApp(http.NewServeMux(), logger, cs, db, store, &config.Config{
			SigningKey: []byte("test-signing-key"),
		}),
		db:       db,
		mediaDir: mediaDir,
	}

	hash, err := hashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	for _, name := range []string{"alice", "bob"} {
		acc, err := db.CreateAccount(context.Background(), database.CreateAccountParams{
			Username:     name,
			EmailAddress: name + "@example.com",
			PasswordHash: hash,
		})
		if err != nil {
			t.Fatalf("create account %s: %v", name, err)
		}
		if name == "alice" {
			app.alice = acc.ToUser()
		} else {
			app.bob = acc.ToUser()
		}
	}

	return app
}

func Test_healthCheck(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)

	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo.On("Ping").Return(tc.mockErr).Once()
			app := newMockApp(t, mockRepo)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			app.healthCheck(rr, req)

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
				assert.Equal(t, "OK", rr.Body.String(), "expected response body to be 'OK'")
			}
		})
	}
}

func TestCreateAccountHandler(t *testing.T) {
	now := time.Now().UTC()
	expectedUser := database.User{
		Id:           "3f0b8f0e-1111-4c3a-9d55-0c3e2b7a9f01",
		Username:     "newuser",
		EmailAddress: "newuser@example.com",
		Profession:   "engineer",
		PasswordHash: "hashedpassword",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	validReq := RegisterRequest{
		Username:   expectedUser.Username,
		Email:      expectedUser.EmailAddress,
		Password:   testPassword,
		Profession: "engineer",
	}

	tcases := []struct {
		name       string
		body       any
		mockUser   database.User
		mockErr    error
		callsDb    bool
		expectCode int
		expectMsg  string
	}{
		{
			name:       "successfully creates a new account",
			body:       validReq,
			mockUser:   expectedUser,
			callsDb:    true,
			expectCode: http.StatusCreated,
		},
		{
			name:       "fails with invalid json body",
			body:       "invalid json",
			expectCode: http.StatusBadRequest,
			expectMsg:  "bad request",
		},
		{
			name:       "fails with short username",
			body:       RegisterRequest{Username: "ab", Email: validReq.Email, Password: testPassword},
			expectCode: http.StatusBadRequest,
			expectMsg:  "username must be at least 3 characters",
		},
		{
			name:       "fails with invalid email",
			body:       RegisterRequest{Username: "newuser", Email: "newuser", Password: testPassword},
			expectCode: http.StatusBadRequest,
			expectMsg:  "email address is invalid",
		},
		{
			name:       "fails with weak password",
			body:       RegisterRequest{Username: "newuser", Email: validReq.Email, Password: "password"},
			expectCode: http.StatusBadRequest,
			expectMsg:  "password must contain an uppercase letter",
		},
		{
			name:       "fails with taken username",
			body:       validReq,
			mockErr:    database.ErrUsernameTaken,
			callsDb:    true,
			expectCode: http.StatusConflict,
			expectMsg:  "username already taken",
		},
		{
			name:       "fails with database error",
			body:       validReq,
			mockErr:    errors.New("db error"),
			callsDb:    true,
			expectCode: http.StatusInternalServerError,
			expectMsg:  "internal server error",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)

			if tc.callsDb {
				mockRepo.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
					return p.Username == validReq.Username &&
						p.EmailAddress == validReq.Email &&
						p.Profession == "engineer" &&
						verifyPassword(p.PasswordHash, testPassword)
				})).Return(tc.mockUser, tc.mockErr).Once()
			}

			var body []byte
			if s, ok := tc.body.(string); ok {
				body = []byte(s)
			} else {
				body, _ = json.Marshal(tc.body)
			}

			app := newMockApp(t, mockRepo)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
			app.createAccount(rr, req)

			assert.Equal(t, tc.expectCode, rr.Code)
			if tc.expectCode == http.StatusCreated {
				var u types.User
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
				assert.Equal(t, expectedUser.Id, u.Id)
				assert.Equal(t, expectedUser.Username, u.Username)
				assert.NotContains(t, rr.Body.String(), "hashedpassword")
				return
			}

			assert.Equal(t, tc.expectMsg, decodeError(t, rr).Message)
		})
	}
}

func TestCreateAccountHandler_MultipartAvatar(t *testing.T) {
	app := newTestApp(t)

	body, contentType := multipartBody(t, map[string]string{
		"username": "carol",
		"email":    "carol@example.com",
		"password": testPassword,
		"location": "Lisbon",
	}, "avatar", "me.png", []byte("png bytes"))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	req.Header.Set("Content-Type", contentType)
	app.createAccount(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var u types.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
	assert.Equal(t, "carol", u.Username)
	assert.Equal(t, "Lisbon", u.Location)
	assert.True(t, strings.HasPrefix(u.Avatar, media.URLPrefix), "expected avatar reference, got %q", u.Avatar)
	assert.True(t, strings.HasSuffix(u.Avatar, ".png"))

	stored, err := app.db.GetAccountByUsername(context.Background(), "carol")
	assert.NoError(t, err)
	assert.Equal(t, u.Avatar, stored.Avatar)
}

func TestCreateAccountHandler_RejectsAvatarType(t *testing.T) {
	app := newTestApp(t)

	body, contentType := multipartBody(t, map[string]string{
		"username": "carol",
		"email":    "carol@example.com",
		"password": testPassword,
	}, "avatar", "run.exe", []byte("MZ"))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	req.Header.Set("Content-Type", contentType)
	app.createAccount(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	_, err := app.db.GetAccountByUsername(context.Background(), "carol")
	assert.ErrorIs(t, err, types.ErrNotFound, "expected no account to be created")
}

func TestLoginHandler(t *testing.T) {
	hash, err := hashPassword(testPassword)
	assert.NoError(t, err)

	dbUser := database.User{
		Id:           "u-1",
		Username:     "alice",
		EmailAddress: "alice@example.com",
		PasswordHash: hash,
	}

	tcases := []struct {
		name       string
		body       string
		mockUser   database.User
		mockErr    error
		callsDb    bool
		expectCode int
	}{
		{
			name:       "successful login",
			body:       `{"username":"alice","password":"` + testPassword + `"}`,
			mockUser:   dbUser,
			callsDb:    true,
			expectCode: http.StatusOK,
		},
		{
			name:       "invalid json",
			body:       `{"username":`,
			expectCode: http.StatusBadRequest,
		},
		{
			name:       "missing password",
			body:       `{"username":"alice"}`,
			expectCode: http.StatusBadRequest,
		},
		{
			name:       "unknown user",
			body:       `{"username":"alice","password":"` + testPassword + `"}`,
			mockErr:    types.ErrNotFound,
			callsDb:    true,
			expectCode: http.StatusNotFound,
		},
		{
			name:       "wrong password",
			body:       `{"username":"alice","password":"Wrong!pass"}`,
			mockUser:   dbUser,
			callsDb:    true,
			expectCode: http.StatusUnauthorized,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)
			if tc.callsDb {
				mockRepo.On("GetAccountByUsername", "alice").Return(tc.mockUser, tc.mockErr).Once()
			}

			app := newMockApp(t, mockRepo)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tc.body))
			app.login(rr, req)

			assert.Equal(t, tc.expectCode, rr.Code)

			cookie := findCookie(rr, tokenCookieKey)
			if tc.expectCode != http.StatusOK {
				assert.Nil(t, cookie, "expected no session cookie")
				return
			}

			assert.NotNil(t, cookie, "expected session cookie")
			assert.True(t, cookie.HttpOnly)
			userId, err := app.extractUserIdFromToken(cookie.Value)
			assert.NoError(t, err)
			assert.Equal(t, dbUser.Id, userId)
			assert.NotContains(t, rr.Body.String(), hash)
		})
	}
}

func TestLogoutHandler(t *testing.T) {
	app := newMockApp(t, &database.MockChatRepository{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil)
	app.logout(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	cookie := findCookie(rr, tokenCookieKey)
	assert.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.Expires.Before(time.Now()), "expected cookie to be expired")
}

func TestSessionHandler(t *testing.T) {
	tcases := []struct {
		name       string
		userId     string
		mockErr    error
		expectCode int
	}{
		{name: "current user", userId: "u-1", expectCode: http.StatusOK},
		{name: "account removed", userId: "u-1", mockErr: types.ErrNotFound, expectCode: http.StatusNotFound},
		{name: "no user in context", expectCode: http.StatusUnauthorized},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)
			if tc.userId != "" {
				mockRepo.On("GetAccountById", tc.userId).
					Return(database.User{Id: tc.userId, Username: "alice"}, tc.mockErr).Once()
			}

			app := newMockApp(t, mockRepo)
			rr := httptest.NewRecorder()
			req := withUser(httptest.NewRequest(http.MethodGet, "/api/auth/session", nil), tc.userId)
			app.session(rr, req)

			assert.Equal(t, tc.expectCode, rr.Code)
			if tc.expectCode == http.StatusOK {
				var u types.User
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
				assert.Equal(t, "alice", u.Username)
			}
		})
	}
}

func TestListUsersHandler(t *testing.T) {
	app := newTestApp(t)

	rr := httptest.NewRecorder()
	req := withUser(httptest.NewRequest(http.MethodGet, "/api/users", nil), app.alice.Id)
	app.listUsers(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var users []types.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&users))
	assert.Len(t, users, 1, "expected the caller to be excluded")
	assert.Equal(t, app.bob.Id, users[0].Id)
	assert.False(t, users[0].Online)
}

func TestListUsersHandler_DbError(t *testing.T) {
	mockRepo := &database.MockChatRepository{}
	mockRepo.On("ListAccounts", "u-1").Return([]database.User(nil), errors.New("db error")).Once()
	defer mockRepo.AssertExpectations(t)

	app := newMockApp(t, mockRepo)
	rr := httptest.NewRecorder()
	app.listUsers(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/users", nil), "u-1"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestGetUserHandler(t *testing.T) {
	app := newTestApp(t)

	tcases := []struct {
		name       string
		id         string
		expectCode int
	}{
		{name: "existing user", id: app.bob.Id, expectCode: http.StatusOK},
		{name: "unknown user", id: "nobody", expectCode: http.StatusNotFound},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := withUser(httptest.NewRequest(http.MethodGet, "/api/users/"+tc.id, nil), app.alice.Id)
			req.SetPathValue("id", tc.id)
			app.getUser(rr, req)

			assert.Equal(t, tc.expectCode, rr.Code)
			if tc.expectCode == http.StatusOK {
				var u types.User
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
				assert.Equal(t, "bob", u.Username)
			}
		})
	}
}

func TestGetMessagesHandler(t *testing.T) {
	app := newTestApp(t)

	first, err := app.cs.SendMessage(app.alice.Id, app.bob.Id, "hi bob", "")
	assert.NoError(t, err)
	second, err := app.cs.SendMessage(app.bob.Id, app.alice.Id, "hi alice", "")
	assert.NoError(t, err)

	tcases := []struct {
		name       string
		peer       string
		expectCode int
		expectIds  []string
	}{
		{name: "conversation history", peer: app.bob.Id, expectCode: http.StatusOK, expectIds: []string{first.Id, second.Id}},
		{name: "conversation with self", peer: app.alice.Id, expectCode: http.StatusBadRequest},
		{name: "unknown peer", peer: "nobody", expectCode: http.StatusNotFound},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := withUser(httptest.NewRequest(http.MethodGet, "/api/conversations/"+tc.peer+"/messages", nil), app.alice.Id)
			req.SetPathValue("id", tc.peer)
			app.getMessages(rr, req)

			assert.Equal(t, tc.expectCode, rr.Code)
			if tc.expectCode != http.StatusOK {
				return
			}

			var messages []types.Message
			assert.NoError(t, json.NewDecoder(rr.Body).Decode(&messages))
			var ids []string
			for _, m := range messages {
				ids = append(ids, m.Id)
			}
			assert.Equal(t, tc.expectIds, ids)
		})
	}
}

func TestGetMessagesHandler_Empty(t *testing.T) {
	app := newTestApp(t)

	rr := httptest.NewRecorder()
	req := withUser(httptest.NewRequest(http.MethodGet, "/", nil), app.alice.Id)
	req.SetPathValue("id", app.bob.Id)
	app.getMessages(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String(), "expected an empty list rather than null")
}

func TestPostMessageHandler(t *testing.T) {
	app := newTestApp(t)

	tcases := []struct {
		name       string
		fields     map[string]string
		filename   string
		expectCode int
	}{
		{name: "text message", fields: map[string]string{"msg": "hello"}, expectCode: http.StatusCreated},
		{name: "media only", filename: "photo.jpg", expectCode: http.StatusCreated},
		{name: "empty message", fields: map[string]string{"msg": "   "}, expectCode: http.StatusBadRequest},
		{name: "unsupported media", filename: "virus.exe", expectCode: http.StatusBadRequest},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tc.fields, "media", tc.filename, []byte("data"))
			rr := httptest.NewRecorder()
			req := withUser(httptest.NewRequest(http.MethodPost, "/", body), app.alice.Id)
			req.Header.Set("Content-Type", contentType)
			req.SetPathValue("id", app.bob.Id)
			app.postMessage(rr, req)

			assert.Equal(t, tc.expectCode, rr.Code, rr.Body.String())
			if tc.expectCode != http.StatusCreated {
				return
			}

			var msg types.Message
			assert.NoError(t, json.NewDecoder(rr.Body).Decode(&msg))
			assert.Equal(t, app.alice.Id, msg.From)
			assert.Equal(t, app.bob.Id, msg.To)
			assert.Equal(t, types.StatusSent, msg.Status)
			if tc.filename != "" {
				assert.True(t, strings.HasPrefix(msg.Media, media.URLPrefix))
			}

			stored, err := app.db.GetMessage(context.Background(), msg.Id)
			assert.NoError(t, err)
			assert.Equal(t, msg.Body, stored.Body)
		})
	}
}

func TestPostMessageHandler_UnknownPeer(t *testing.T) {
	app := newTestApp(t)

	body, contentType := multipartBody(t, map[string]string{"msg": "hello"}, "", "", nil)
	rr := httptest.NewRecorder()
	req := withUser(httptest.NewRequest(http.MethodPost, "/", body), app.alice.Id)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("id", "nobody")
	app.postMessage(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPostMessageHandler_SendFailureDiscardsUpload(t *testing.T) {
	app := newTestApp(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, app.cs.Shutdown(ctx))

	body, contentType := multipartBody(t, map[string]string{"msg": "look"}, "media", "photo.jpg", []byte("data"))
	rr := httptest.NewRecorder()
	req := withUser(httptest.NewRequest(http.MethodPost, "/", body), app.alice.Id)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("id", app.bob.Id)
	app.postMessage(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code, rr.Body.String())

	entries, err := os.ReadDir(app.mediaDir)
	assert.NoError(t, err)
	assert.Empty(t, entries, "expected the upload to be removed when the send fails")
}

func dialWs(t *testing.T, app *testApp, srv *httptest.Server, user types.User) *websocket.Conn {
	t.Helper()
	token, err := app.createJwtForSession(user, time.Minute)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	header := http.Header{}
	header.Set("Cookie", tokenCookieKey+"="+token)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	if err != nil {
		t.Fatalf("dial as %s: %v", user.Username, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, event server.EventType) server.ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg server.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if msg.Event == event {
			return msg
		}
	}
}

func TestServeWs(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.mux.Handler)
	t.Cleanup(srv.Close)

	alice := dialWs(t, app, srv, app.alice)
	bob := dialWs(t, app, srv, app.bob)

	key := types.RoomKey(app.alice.Id, app.bob.Id)
	for _, conn := range []*websocket.Conn{alice, bob} {
		assert.NoError(t, conn.WriteJSON(server.ClientMessage{
			BaseMessage: server.BaseMessage{Id: 1},
			Event:       server.EventJoinRoom,
			Join:        &server.Join{RoomKey: key},
		}))
		res := readUntil(t, conn, server.EventResponse)
		assert.Equal(t, http.StatusOK, res.Response.ResponseCode)
	}

	// both identities are now listed as online
	rr := httptest.NewRecorder()
	app.listUsers(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/users", nil), app.bob.Id))
	var users []types.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&users))
	assert.Len(t, users, 1)
	assert.True(t, users[0].Online, "expected alice to be online")

	// an HTTP send reaches both subscribers of the room
	body, contentType := multipartBody(t, map[string]string{"msg": "sent over http"}, "", "", nil)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/conversations/"+app.bob.Id+"/messages", body)
	assert.NoError(t, err)
	token, err := app.createJwtForSession(app.alice, time.Minute)
	assert.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: token})
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	for _, conn := range []*websocket.Conn{alice, bob} {
		chat := readUntil(t, conn, server.EventChatMessage)
		assert.Equal(t, "sent over http", chat.Message.Body)
	}
}

func TestServeWs_Unauthenticated(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.mux.Handler)
	t.Cleanup(srv.Close)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	assert.Error(t, err)
	if assert.NotNil(t, resp) {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}
