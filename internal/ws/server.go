package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"codesync/internal/services/rooms"
	"codesync/internal/session"
	"codesync/internal/signaling"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Journal records realtime joins for the persisted room record.
type Journal interface {
	RecordJoin(ctx context.Context, roomID, userName string) error
}

type Options struct {
	ReadLimit      int64
	SendBuffer     int
	AllowedOrigins []string // "*" allows any origin

	// Placement is required when several instances share a Redis
	// broadcast substrate; nil means a single instance owns every room.
	Placement Placement
}

type WsServer struct {
	hub      *Hub
	coord    *session.Coordinator
	router   *Router
	journal  Journal
	opts     Options
	upgrader websocket.Upgrader
}

// NewWsServer wires the transport to the coordinator. journal may be nil.
func NewWsServer(h *Hub, coord *session.Coordinator, journal Journal, opts Options) *WsServer {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 1 << 20
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	srv := &WsServer{
		hub:     h,
		coord:   coord,
		router:  NewRouter(),
		journal: journal,
		opts:    opts,
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     srv.checkOrigin,
	}
	srv.registerHandlers() // all WS events configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}

	conn := newClientConn(uuid.NewString(), rawConn, s.opts.SendBuffer)
	s.hub.register(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	err = s.coord.Connect(ctx, conn.id)
	cancel()
	if err != nil {
		zap.L().Warn("ws.connect", zap.String("conn", conn.id), zap.Error(err))
		s.hub.unregister(conn)
		_ = rawConn.Close()
		return
	}

	s.hub.ToConnection(conn.id, session.EventSession, session.SessionPayload{ConnectionID: conn.id})
	zap.L().Info("ws.accept", zap.String("conn", conn.id), zap.String("remote", ginCtx.ClientIP()))

	go conn.writePump()
	go s.reader(conn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.opts.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(s.opts.AllowedOrigins, origin)
}

// signalError is a relay failure reported as webrtc-error.
type signalError struct {
	kind signaling.Kind
	to   string
	err  error
}

func (e *signalError) Error() string { return e.err.Error() }
func (e *signalError) Unwrap() error { return e.err }

func (s *WsServer) registerHandlers() {
	Register(s.router, session.EventJoinRoom,
		func(ctx context.Context, cc *ConnContext, req JoinRoomRequest) error {
			roomID := rooms.NormalizeRoomID(req.RoomID)
			if s.opts.Placement != nil {
				if err := s.opts.Placement.Claim(ctx, roomID); err != nil {
					return err
				}
			}
			if _, err := s.coord.Join(ctx, cc.ConnID, roomID, req.UserName); err != nil {
				return err
			}
			if s.journal != nil {
				if err := s.journal.RecordJoin(ctx, roomID, req.UserName); err != nil {
					zap.L().Warn("ws.journal", zap.String("room", roomID), zap.Error(err))
				}
			}
			return nil
		},
	)

	Register(s.router, session.EventLeaveRoom,
		func(ctx context.Context, cc *ConnContext, _ EmptyRequest) error {
			return s.coord.Leave(ctx, cc.ConnID)
		},
	)

	Register(s.router, session.EventCodeChange,
		func(ctx context.Context, cc *ConnContext, req CodeChangeRequest) error {
			_, err := s.coord.UpdateCode(ctx, cc.ConnID, rooms.NormalizeRoomID(req.RoomID), req.Code)
			return err
		},
	)

	Register(s.router, session.EventLanguageChange,
		func(ctx context.Context, cc *ConnContext, req LanguageChangeRequest) error {
			_, err := s.coord.UpdateLanguage(ctx, cc.ConnID, rooms.NormalizeRoomID(req.RoomID), req.Language)
			return err
		},
	)

	Register(s.router, session.EventCloseRoom,
		func(ctx context.Context, cc *ConnContext, req RoomRequest) error {
			return s.coord.CloseRoom(ctx, cc.ConnID, rooms.NormalizeRoomID(req.RoomID))
		},
	)

	Register(s.router, session.EventRemoveUser,
		func(ctx context.Context, cc *ConnContext, req RemoveUserRequest) error {
			return s.coord.RemoveMember(ctx, cc.ConnID, rooms.NormalizeRoomID(req.RoomID), req.UserName)
		},
	)

	Register(s.router, session.EventJoinVoiceChat,
		func(ctx context.Context, cc *ConnContext, req VoiceRequest) error {
			_, err := s.coord.JoinVoice(ctx, cc.ConnID, rooms.NormalizeRoomID(req.RoomID))
			return err
		},
	)

	Register(s.router, session.EventLeaveVoiceChat,
		func(ctx context.Context, cc *ConnContext, req VoiceRequest) error {
			return s.coord.LeaveVoice(ctx, cc.ConnID, rooms.NormalizeRoomID(req.RoomID))
		},
	)

	s.registerRelay(session.EventWebRTCOffer, signaling.KindOffer)
	s.registerRelay(session.EventWebRTCAnswer, signaling.KindAnswer)
	s.registerRelay(session.EventWebRTCICE, signaling.KindCandidate)

	Register(s.router, session.EventWebRTCPeerState,
		func(ctx context.Context, cc *ConnContext, req PeerStateRequest) error {
			return s.coord.PeerState(ctx, cc.ConnID, rooms.NormalizeRoomID(req.RoomID), req.Peer, req.State)
		},
	)

	Register(s.router, session.EventWhiteboardDraw,
		func(ctx context.Context, cc *ConnContext, req WhiteboardDrawRequest) error {
			return s.coord.Whiteboard(ctx, cc.ConnID, rooms.NormalizeRoomID(req.RoomID), &session.Stroke{
				X: req.X, Y: req.Y, PrevX: req.PrevX, PrevY: req.PrevY, Color: req.Color, Size: req.Size,
			})
		},
	)

	Register(s.router, session.EventWhiteboardClear,
		func(ctx context.Context, cc *ConnContext, req RoomRequest) error {
			return s.coord.Whiteboard(ctx, cc.ConnID, rooms.NormalizeRoomID(req.RoomID), nil)
		},
	)
}

func (s *WsServer) registerRelay(event string, kind signaling.Kind) {
	Register(s.router, event,
		func(ctx context.Context, cc *ConnContext, req SignalRequest) error {
			payload := req.Offer
			switch kind {
			case signaling.KindAnswer:
				payload = req.Answer
			case signaling.KindCandidate:
				payload = req.Candidate
			}
			err := s.coord.Relay(ctx, cc.ConnID, signaling.Envelope{
				Kind:    kind,
				RoomID:  rooms.NormalizeRoomID(req.RoomID),
				To:      req.To,
				Payload: payload,
			})
			if err != nil && !errors.Is(err, session.ErrStopped) {
				return &signalError{kind: kind, to: req.To, err: err}
			}
			return err
		},
	)
}

func (s *WsServer) reader(conn *clientConn) {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.coord.Disconnect(ctx, conn.id); err != nil {
			zap.L().Warn("ws.disconnect", zap.String("conn", conn.id), zap.Error(err))
		}
		cancel()
		s.hub.unregister(conn)
		conn.close()
		zap.L().Info("ws.close", zap.String("conn", conn.id))
	}()

	conn.rawConn.SetReadLimit(s.opts.ReadLimit)
	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	cc := &ConnContext{ConnID: conn.id}

	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("ws.read", zap.String("conn", conn.id), zap.Error(err))
			}
			return // client closed or errored
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.replyError(conn, "", ErrBadRequest)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = s.router.dispatch(ctx, cc, env)
		cancel()

		if err != nil && !s.dropSilently(conn, env.Event, err) {
			s.replyError(conn, env.Event, err)
		}
	}
}

// dropSilently reports whether a failed frame gets no reply. Candidates
// are high-frequency and a lost one is tolerable, so even undecodable
// candidate frames are only logged.
func (s *WsServer) dropSilently(conn *clientConn, event string, err error) bool {
	if event != session.EventWebRTCICE || !errors.Is(err, ErrBadRequest) {
		return false
	}
	zap.L().Debug("ws.candidate_dropped", zap.String("conn", conn.id), zap.Error(err))
	return true
}

// replyError surfaces a failure to the acting connection only.
func (s *WsServer) replyError(conn *clientConn, event string, err error) {
	var sigErr *signalError
	if errors.As(err, &sigErr) {
		s.hub.ToConnection(conn.id, session.EventWebRTCError, session.SignalErrorPayload{
			Type:    string(sigErr.kind),
			To:      sigErr.to,
			Message: sigErr.err.Error(),
		})
		return
	}
	s.hub.ToConnection(conn.id, session.EventErrorMessage, session.ErrorPayload{
		Event:   event,
		Message: err.Error(),
	})
}
