package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-duochat/internal/database"
	"github.com/npezzotti/go-duochat/internal/media"
	"github.com/npezzotti/go-duochat/internal/server"
	"github.com/npezzotti/go-duochat/internal/types"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Profession string `json:"profession"`
	Location   string `json:"location"`
}

func (s *GoChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *GoChatApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.StatusCode >= http.StatusInternalServerError && errResp.Err != nil {
		s.log.Printf("%d: %v", errResp.StatusCode, errResp.Err)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// saveUpload stores the file sent in the given multipart field and returns
// its media reference, or "" when the field is absent.
func (s *GoChatApp) saveUpload(r *http.Request, field string) (string, *ApiError) {
	if r.MultipartForm == nil {
		return "", nil
	}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", NewBadRequestError()
	}
	defer file.Close()

	if s.media == nil {
		return "", NewValidationError("uploads are not enabled")
	}

	ref, err := s.media.Save(header.Filename, file)
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) || errors.Is(err, media.ErrUnsupportedType) {
			return "", NewValidationError(err.Error())
		}
		return "", NewInternalServerError(err)
	}

	return ref, nil
}

func (s *GoChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *GoChatApp) decodeRegisterRequest(r *http.Request) (RegisterRequest, error) {
	var req RegisterRequest
	if !isMultipart(r) {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}

	if err := r.ParseMultipartForm(media.MaxUploadSize); err != nil {
		return req, err
	}

	req = RegisterRequest{
		Username:   r.FormValue("username"),
		Email:      r.FormValue("email"),
		Password:   r.FormValue("password"),
		Profession: r.FormValue("profession"),
		Location:   r.FormValue("location"),
	}
	return req, nil
}

func (s *GoChatApp) createAccount(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeRegisterRequest(r)
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if msg := validateRegistration(req); msg != "" {
		s.writeError(w, NewValidationError(msg))
		return
	}

	avatar, errResp := s.saveUpload(r, "avatar")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	newUser, err := s.db.CreateAccount(r.Context(), database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		Profession:   strings.TrimSpace(req.Profession),
		Location:     strings.TrimSpace(req.Location),
		Avatar:       avatar,
		PasswordHash: pwdHash,
	})
	if err != nil {
		s.writeError(w, errorFor(err))
		return
	}

	s.writeJson(w, http.StatusCreated, newUser.ToUser())
}

func (s *GoChatApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	user, err := s.db.GetAccountById(r.Context(), userId)
	if err != nil {
		s.writeError(w, errorFor(err))
		return
	}

	s.writeJson(w, http.StatusOK, user.ToUser())
}

func (s *GoChatApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if lr.Username == "" || lr.Password == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	dbUser, err := s.db.GetAccountByUsername(r.Context(), lr.Username)
	if err != nil {
		s.writeError(w, errorFor(err))
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	u := dbUser.ToUser()
	token, err := s.createJwtForSession(u, defaultJwtExpiration)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, u)
}

func (s *GoChatApp) logout(w http.ResponseWriter, _ *http.Request) {
	// overwrite the cookie with an expired one so the browser drops it
	http.SetCookie(w, createJwtCookie("", time.Duration(time.Unix(0, 0).Unix())))
	w.WriteHeader(http.StatusNoContent)
}

func (s *GoChatApp) listUsers(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	accounts, err := s.db.ListAccounts(r.Context(), userId)
	if err != nil {
		s.writeError(w, errorFor(err))
		return
	}

	online := s.cs.OnlineUsers()
	users := make([]types.User, 0, len(accounts))
	for _, a := range accounts {
		u := a.ToUser()
		u.Online = online[u.Id]
		users = append(users, u)
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *GoChatApp) getUser(w http.ResponseWriter, r *http.Request) {
	account, err := s.db.GetAccountById(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, errorFor(err))
		return
	}

	u := account.ToUser()
	u.Online = s.cs.IsOnline(u.Id)
	s.writeJson(w, http.StatusOK, u)
}

// peer resolves the {id} path value to the other participant of the
// caller's conversation.
func (s *GoChatApp) peer(r *http.Request) (string, string, *ApiError) {
	userId, ok := UserId(r.Context())
	if !ok {
		return "", "", NewUnauthorizedError()
	}

	peerId := r.PathValue("id")
	if peerId == "" || peerId == userId {
		return "", "", NewValidationError("a conversation needs two distinct participants")
	}

	if _, err := s.db.GetAccountById(r.Context(), peerId); err != nil {
		return "", "", errorFor(err)
	}

	return userId, peerId, nil
}

func (s *GoChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, peerId, errResp := s.peer(r)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	history, err := s.db.GetHistory(r.Context(), userId, peerId)
	if err != nil {
		s.writeError(w, errorFor(err))
		return
	}

	messages := make([]types.Message, 0, len(history))
	for _, m := range history {
		messages = append(messages, m.ToMessage())
	}

	s.writeJson(w, http.StatusOK, messages)
}

// postMessage sends through the chat server so the message is published to
// the room exactly as a WebSocket send would be.
func (s *GoChatApp) postMessage(w http.ResponseWriter, r *http.Request) {
	userId, peerId, errResp := s.peer(r)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if isMultipart(r) {
		if err := r.ParseMultipartForm(media.MaxUploadSize); err != nil {
			s.writeError(w, NewBadRequestError())
			return
		}
	}

	ref, errResp := s.saveUpload(r, "media")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	msg, err := s.cs.SendMessage(userId, peerId, r.FormValue("msg"), ref)
	if err != nil {
		if ref != "" {
			if rmErr := s.media.Remove(ref); rmErr != nil {
				s.log.Printf("discard upload %s: %v", ref, rmErr)
			}
		}
		s.writeError(w, errorFor(err))
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *GoChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	user, err := s.db.GetAccountById(r.Context(), userId)
	if err != nil {
		s.writeError(w, errorFor(err))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(user.ToUser(), conn, s.cs, s.log)
	if err := s.cs.RegisterClient(client); err != nil {
		s.log.Printf("register client %s: %v", user.Username, err)
		conn.Close()
	}
}
