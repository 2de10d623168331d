package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"skillswap/internal/apperr"
	"skillswap/internal/handler"
	"skillswap/internal/model"
	"skillswap/internal/realtime"
	"skillswap/internal/service/chat"
	"skillswap/internal/service/negotiation"
	"skillswap/internal/service/penalty"
	"skillswap/pkg/util"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeEngine embeds the interface so tests only implement what they call.
type fakeEngine struct {
	handler.Negotiator
	makeOffer func(senderID, postID int64, in negotiation.OfferInput) (*model.Offer, error)
	accept    func(offerID, receiverID int64) error
	myOffers  func(userID int64) ([]model.OfferView, error)
}

func (f *fakeEngine) MakeOffer(_ context.Context, senderID, postID int64, in negotiation.OfferInput) (*model.Offer, error) {
	return f.makeOffer(senderID, postID, in)
}

func (f *fakeEngine) AcceptOffer(_ context.Context, offerID, receiverID int64) error {
	return f.accept(offerID, receiverID)
}

func (f *fakeEngine) MyOffers(_ context.Context, userID int64) ([]model.OfferView, error) {
	return f.myOffers(userID)
}

type fakeAdmin struct {
	handler.CounterOfferAdmin
	deleted []int64
}

func (f *fakeAdmin) AdminDeleteCounterOffer(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeReplay struct{ replayed []int64 }

func (f *fakeReplay) ReplayEvent(_ context.Context, id int64) error {
	f.replayed = append(f.replayed, id)
	return nil
}

func (f *fakeReplay) ReplayFailedEvents(context.Context, int) (int, error) { return 0, nil }

type fakePenalties struct{}

func (fakePenalties) Apply(context.Context, int64, int64) (penalty.Result, error) {
	return penalty.Result{Verdict: penalty.Verdict{WarningCounter: 1}}, nil
}

type fakeProjects struct{ handler.Projects }

type fakeChat struct{}

func (fakeChat) SendMessage(_ context.Context, _, senderID int64, message string) (*chat.Outgoing, error) {
	return &chat.Outgoing{SenderID: senderID, Message: message}, nil
}

func (fakeChat) History(context.Context, int64, int64, int) ([]model.ChatMessage, error) {
	return nil, nil
}

type fakeUsers map[int64]*model.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return u, nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type allowAll struct{}

func (allowAll) IsMember(context.Context, string, int64) (bool, error) { return true, nil }

type brokerState bool

func (b brokerState) IsConnected() bool { return bool(b) }

type testServer struct {
	router *Router
	deps   Deps
	engine *fakeEngine
	admin  *fakeAdmin
	replay *fakeReplay
	hub    *realtime.Hub
}

func newTestServer(t *testing.T, rps float64, burst int) *testServer {
	t.Helper()
	log := zap.NewNop()
	banned := time.Now().Add(48 * time.Hour)
	ts := &testServer{
		engine: &fakeEngine{
			makeOffer: func(senderID, postID int64, in negotiation.OfferInput) (*model.Offer, error) {
				return &model.Offer{ID: 9, SenderID: senderID, PostID: postID, Status: model.OfferPending, Message: in.Message}, nil
			},
			accept: func(int64, int64) error {
				return apperr.Conflict(apperr.CodeOfferCountered, "Offer has been countered")
			},
			myOffers: func(int64) ([]model.OfferView, error) {
				return nil, apperr.NotFound(apperr.CodeOfferNotFound, "No offers yet!")
			},
		},
		admin:  &fakeAdmin{},
		replay: &fakeReplay{},
		hub:    realtime.NewHub(log),
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ts.deps = Deps{
		Offers:   handler.NewOfferHandler(ts.engine, log),
		Projects: handler.NewProjectHandler(fakeProjects{}, log),
		Chat:     handler.NewChatHandler(fakeChat{}, log),
		Admin:    handler.NewAdminHandler(ts.admin, ts.replay, fakePenalties{}, log),
		WS:       handler.NewWSHandler(ctx, ts.hub, allowAll{}, nil, log),
		Users: fakeUsers{
			1: {ID: 1},
			2: {ID: 2, IsBanned: true, BannedTill: &banned},
		},
		Limiter:   NewRateLimiter(rps, burst),
		DB:        okPinger{},
		JWTSecret: secret,
		Logger:    log,
	}
	ts.router = NewRouter(ts.deps)
	return ts
}

func token(t *testing.T, userID int64, role string) string {
	t.Helper()
	tok, err := util.GenerateJWT(userID, role, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, tok, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	ts.router.Engine.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestHealthAndTrace(t *testing.T) {
	ts := newTestServer(t, 100, 10)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(traceHeader, "abc")
	w := httptest.NewRecorder()
	ts.router.Engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
	if w.Header().Get(traceHeader) != "abc" {
		t.Fatalf("trace header = %q", w.Header().Get(traceHeader))
	}

	w, _ = ts.do(t, http.MethodGet, "/readyz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("readyz = %d", w.Code)
	}
}

func TestReadyzChecksQueue(t *testing.T) {
	ts := newTestServer(t, 100, 10)
	for _, tt := range []struct {
		name  string
		queue Broker
		code  int
	}{
		{"connected", brokerState(true), http.StatusOK},
		{"dropped", brokerState(false), http.StatusServiceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			d := ts.deps
			d.Queue = tt.queue
			ts.router = NewRouter(d)
			w, body := ts.do(t, http.MethodGet, "/readyz", "", "")
			if w.Code != tt.code {
				t.Errorf("readyz = %d, want %d (%v)", w.Code, tt.code, body)
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, 100, 10)
	w, _ := ts.do(t, http.MethodGet, "/offers", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d", w.Code)
	}
	w, _ = ts.do(t, http.MethodGet, "/offers", "garbage", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d", w.Code)
	}
}

func TestMakeOffer(t *testing.T) {
	ts := newTestServer(t, 100, 10)
	body := `{"message":"let's swap","start_date":"2025-01-02T00:00:00Z","milestones":[{"title":"API","duration":4}]}`
	w, out := ts.do(t, http.MethodPost, "/posts/50/offers", token(t, 1, "user"), body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if out["status"] != "success" {
		t.Fatalf("body = %v", out)
	}
	data := out["data"].(map[string]any)
	if data["post_id"].(float64) != 50 || data["sender_id"].(float64) != 1 {
		t.Fatalf("data = %v", data)
	}

	w, out = ts.do(t, http.MethodPost, "/posts/50/offers", token(t, 1, "user"), `{"message":"x"}`)
	if w.Code != http.StatusBadRequest || out["status"] != "fail" {
		t.Fatalf("missing fields = %d %v", w.Code, out)
	}

	w, _ = ts.do(t, http.MethodPost, "/posts/abc/offers", token(t, 1, "user"), body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d", w.Code)
	}
}

func TestDomainErrorsMapToStatus(t *testing.T) {
	ts := newTestServer(t, 100, 10)
	w, out := ts.do(t, http.MethodPost, "/offers/9/accept", token(t, 1, "user"), "")
	if w.Code != http.StatusConflict || out["code"] != apperr.CodeOfferCountered || out["status"] != "fail" {
		t.Fatalf("accept = %d %v", w.Code, out)
	}

	w, out = ts.do(t, http.MethodGet, "/offers", token(t, 1, "user"), "")
	if w.Code != http.StatusNotFound || out["message"] != "No offers yet!" {
		t.Fatalf("list = %d %v", w.Code, out)
	}

	ts.engine.myOffers = func(int64) ([]model.OfferView, error) {
		return nil, context.DeadlineExceeded
	}
	w, out = ts.do(t, http.MethodGet, "/offers", token(t, 1, "user"), "")
	if w.Code != http.StatusInternalServerError || out["status"] != "error" {
		t.Fatalf("internal = %d %v", w.Code, out)
	}
	if strings.Contains(out["message"].(string), "deadline") {
		t.Fatalf("internal error leaked: %v", out["message"])
	}
}

func TestBanGate(t *testing.T) {
	ts := newTestServer(t, 100, 10)
	w, out := ts.do(t, http.MethodPost, "/offers/9/accept", token(t, 2, "user"), "")
	if w.Code != http.StatusForbidden || out["code"] != apperr.CodeUserBanned {
		t.Fatalf("banned accept = %d %v", w.Code, out)
	}

	// Reads and rejections stay open to banned users.
	ts.engine.myOffers = func(int64) ([]model.OfferView, error) { return []model.OfferView{{ID: 1}}, nil }
	w, _ = ts.do(t, http.MethodGet, "/offers", token(t, 2, "user"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("banned read = %d", w.Code)
	}

	w, out = ts.do(t, http.MethodPost, "/offers/9/accept", token(t, 77, "user"), "")
	if w.Code != http.StatusNotFound || out["code"] != apperr.CodeUserNotFound {
		t.Fatalf("unknown user = %d %v", w.Code, out)
	}
}

func TestAdminRoutesRequireRole(t *testing.T) {
	ts := newTestServer(t, 100, 10)
	w, _ := ts.do(t, http.MethodDelete, "/admin/counter-offers/5", token(t, 1, "user"), "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("user delete = %d", w.Code)
	}
	w, _ = ts.do(t, http.MethodDelete, "/admin/counter-offers/5", token(t, 1, "admin"), "")
	if w.Code != http.StatusOK || len(ts.admin.deleted) != 1 || ts.admin.deleted[0] != 5 {
		t.Fatalf("admin delete = %d %v", w.Code, ts.admin.deleted)
	}

	w, _ = ts.do(t, http.MethodPost, "/admin/outbox/replay?id=12", token(t, 1, "admin"), "")
	if w.Code != http.StatusOK || len(ts.replay.replayed) != 1 {
		t.Fatalf("replay = %d", w.Code)
	}
	w, _ = ts.do(t, http.MethodPost, "/admin/outbox/replay?id=x", token(t, 1, "admin"), "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("replay bad id = %d", w.Code)
	}

	w, out := ts.do(t, http.MethodPost, "/admin/projects/3/penalties/2", token(t, 1, "admin"), "")
	if w.Code != http.StatusOK || out["data"].(map[string]any)["warning_counter"].(float64) != 1 {
		t.Fatalf("penalty = %d %v", w.Code, out)
	}
}

func TestChatSend(t *testing.T) {
	ts := newTestServer(t, 100, 10)
	w, out := ts.do(t, http.MethodPost, "/offers/9/messages", token(t, 1, "user"), `{"message":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("send = %d %v", w.Code, out)
	}
	if out["data"].(map[string]any)["message"] != "hello" {
		t.Fatalf("data = %v", out["data"])
	}
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, 0.001, 2)
	ts.engine.myOffers = func(int64) ([]model.OfferView, error) { return nil, nil }
	tok := token(t, 1, "user")
	for i := 0; i < 2; i++ {
		if w, _ := ts.do(t, http.MethodGet, "/offers", tok, ""); w.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, w.Code)
		}
	}
	if w, _ := ts.do(t, http.MethodGet, "/offers", tok, ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d", w.Code)
	}
	// Buckets are per user.
	if w, _ := ts.do(t, http.MethodGet, "/offers", token(t, 3, "user"), ""); w.Code != http.StatusOK {
		t.Fatalf("other user = %d", w.Code)
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Now()
	rl.get("a", now.Add(-10*time.Minute))
	rl.get("b", now)
	if n := rl.Sweep(now); n != 1 {
		t.Fatalf("swept %d", n)
	}
}

func TestWebsocketConnect(t *testing.T) {
	ts := newTestServer(t, 100, 10)
	srv := httptest.NewServer(ts.router.Engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token(t, 1, "user")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for ts.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	ts.hub.Deliver(realtime.Envelope{Room: realtime.UserRoom(1), Event: realtime.EventOfferAccepted, Data: json.RawMessage(`{"roomId":"offer_9_1_2"}`)})

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env realtime.Envelope
	if err := ws.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	if env.Event != realtime.EventOfferAccepted {
		t.Fatalf("event = %+v", env)
	}

	if _, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil); err == nil {
		t.Fatal("dial without token should fail")
	}
}
