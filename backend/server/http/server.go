package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/kmlikithkumar/skillswap/backend/model"
	"github.com/kmlikithkumar/skillswap/backend/service"
	"github.com/kmlikithkumar/skillswap/backend/storage"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

// MessagingAPI is the service surface the REST API fronts. Everything here
// is a thin pass-through to the store, except Send which also fans the
// message out to the room.
type MessagingAPI interface {
	Users(ctx context.Context) ([]model.User, error)
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	ConversationsByUser(ctx context.Context, userID string) ([]model.Conversation, error)
	Conversation(ctx context.Context, id string) (service.ConversationWithMessages, error)
	CreateConversation(ctx context.Context, participants []string) (model.Conversation, bool, error)
	Send(ctx context.Context, roomID, senderID, receiverID, content string) (model.ChatMessage, error)
	Seed(ctx context.Context) ([]model.User, string, error)
}

type CreateConversationRequest struct {
	Participants []string `json:"participants"`
}

type SendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	ReceiverID     string `json:"receiverId"`
	Content        string `json:"content"`
}

type SeedResponse struct {
	OK             bool         `json:"ok"`
	Users          []model.User `json:"users"`
	ConversationID string       `json:"conversationId"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	logger zerolog.Logger
	svc    MessagingAPI
	*http.Server
}

type Config struct {
	Logger     *zerolog.Logger
	API        MessagingAPI
	ListenAddr string
}

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger: cfg.Logger.With().Str("component", "api-server").Logger(),
		svc:    cfg.API,
	}

	r := http.NewServeMux()
	r.HandleFunc("GET /api/health", srv.health)
	r.HandleFunc("GET /api/users", srv.listUsers)
	r.HandleFunc("POST /api/users", srv.createUser)
	r.HandleFunc("GET /api/conversations/user/{userID}", srv.conversationsByUser)
	r.HandleFunc("GET /api/conversations/{conversationID}", srv.conversation)
	r.HandleFunc("POST /api/conversations", srv.createConversation)
	r.HandleFunc("POST /api/messages", srv.sendMessage)
	r.HandleFunc("POST /api/dev/seed", srv.seed)
	r.HandleFunc("GET /api/dev/seed", srv.seed)
	r.HandleFunc("OPTIONS /", corsHandler)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}
	return srv
}

func corsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) health(w http.ResponseWriter, _ *http.Request) {
	srv.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (srv *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := srv.svc.Users(r.Context())
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, users)
}

func (srv *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var user model.User
	if !srv.readJSON(w, r, &user) {
		return
	}
	created, err := srv.svc.CreateUser(r.Context(), user)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusCreated, created)
}

func (srv *Server) conversationsByUser(w http.ResponseWriter, r *http.Request) {
	convos, err := srv.svc.ConversationsByUser(r.Context(), r.PathValue("userID"))
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, convos)
}

func (srv *Server) conversation(w http.ResponseWriter, r *http.Request) {
	convo, err := srv.svc.Conversation(r.Context(), r.PathValue("conversationID"))
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, convo)
}

func (srv *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if !srv.readJSON(w, r, &req) {
		return
	}
	convo, created, err := srv.svc.CreateConversation(r.Context(), req.Participants)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	code := http.StatusOK // existing pair is returned, not an error
	if created {
		code = http.StatusCreated
	}
	srv.writeJSON(w, code, convo)
}

func (srv *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !srv.readJSON(w, r, &req) {
		return
	}
	msg, err := srv.svc.Send(r.Context(), req.ConversationID, req.SenderID, req.ReceiverID, req.Content)
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusCreated, msg)
}

func (srv *Server) seed(w http.ResponseWriter, r *http.Request) {
	users, convID, err := srv.svc.Seed(r.Context())
	if err != nil {
		srv.writeError(w, err)
		return
	}
	srv.writeJSON(w, http.StatusOK, SeedResponse{OK: true, Users: users, ConversationID: convID})
}

func (srv *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body, _ := io.ReadAll(r.Body)
	defer func() {
		_ = r.Body.Close()
	}()
	if err := json.Unmarshal(body, v); err != nil {
		srv.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// writeError maps store errors onto the API taxonomy. Internal failures are
// never exposed verbatim.
func (srv *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrValidation):
		srv.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: trimInternal(err)})
	case errors.Is(err, storage.ErrNotFound):
		srv.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	default:
		srv.logger.Error().Err(err).Msg("request failed")
		srv.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// trimInternal keeps only the leading, client-safe part of a wrapped
// validation error.
func trimInternal(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for i := 0; i < len(msg); i++ {
		if msg[i] == '\n' {
			return msg[:i]
		}
	}
	return msg
}

func (srv *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeBytes(w, code, b)
}

func writeBytes(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}
