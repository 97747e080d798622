package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"codesync/internal/http/executehandler"
	"codesync/internal/http/roomhandler"
	"codesync/internal/http/systemhandler"
	"codesync/internal/services/execution"
	"codesync/internal/services/rooms"
	"codesync/internal/ws"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

type Deps struct {
	WsSrv          *ws.WsServer
	RoomService    rooms.IRoomService
	ExecService    execution.IExecutionService
	DB             systemhandler.Pinger
	ICEServers     []webrtc.ICEServer
	AllowedOrigins []string
}

type httpServer struct {
	listenPort uint16
	srv        *http.Server
	ln         net.Listener
	deps       Deps
	ctx        context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, deps Deps) *httpServer {
	h := &httpServer{
		listenPort: listenPort,
		deps:       deps,
		ctx:        ctx,
	}
	h.srv = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return h
}

// Handler builds the routed engine wrapped in CORS.
func (h *httpServer) Handler() http.Handler {
	routerEngine := gin.New()
	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// Swagger UI
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))

	if h.deps.WsSrv != nil {
		routerEngine.GET("/ws", h.deps.WsSrv.Handle)
	}

	systemhandler.New(h.deps.DB, h.deps.ICEServers).Register(routerEngine)
	roomhandler.New(h.deps.RoomService).Register(routerEngine)
	executehandler.New(h.deps.ExecService).Register(routerEngine)

	return corsHandler(h.deps.AllowedOrigins).Handler(routerEngine)
}

func corsHandler(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           300,
	})
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	zap.L().Info("http.listen", zap.String("addr", h.ln.Addr().String()))

	if err := h.srv.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in-flight requests to finish.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			zap.L().Error("http.dispose", zap.Error(errors.New("shutdown timed out")))
		} else {
			zap.L().Error("http.dispose", zap.Error(err))
		}
		return err
	}
	return nil
}
