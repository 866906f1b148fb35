package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lvdashuaibi/hotrank/config"
	"github.com/lvdashuaibi/hotrank/internal/model"
	"github.com/lvdashuaibi/hotrank/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStore 内存存储，实现repository中的全部接口
type fakeStore struct {
	events map[int64]*model.RsEvent
	users  map[int64]*model.User
	votes  []*model.VoteRecord
	trades map[int]*model.Trade
	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events: make(map[int64]*model.RsEvent),
		users:  make(map[int64]*model.User),
		trades: make(map[int]*model.Trade),
	}
}

func (f *fakeStore) addUser(user *model.User) *model.User {
	f.nextID++
	user.ID = f.nextID
	f.users[user.ID] = user
	return user
}

func (f *fakeStore) addEvent(event *model.RsEvent) *model.RsEvent {
	f.nextID++
	event.ID = f.nextID
	f.events[event.ID] = event
	return event
}

func (f *fakeStore) FindEvent(ctx context.Context, id int64) (*model.RsEvent, bool, error) {
	event, ok := f.events[id]
	return event, ok, nil
}

func (f *fakeStore) AllEvents(ctx context.Context) ([]*model.RsEvent, error) {
	events, _, _ := f.RankSnapshot(ctx)
	return events, nil
}

func (f *fakeStore) CountEvents(ctx context.Context) (int, error) {
	return len(f.events), nil
}

func (f *fakeStore) CreateEvent(ctx context.Context, event *model.RsEvent) error {
	f.addEvent(event)
	return nil
}

func (f *fakeStore) FindUser(ctx context.Context, id int64) (*model.User, bool, error) {
	user, ok := f.users[id]
	return user, ok, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, user *model.User) error {
	f.addUser(user)
	return nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, id int64) error {
	for eventID, event := range f.events {
		if event.UserID == id {
			delete(f.events, eventID)
		}
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) CastVote(ctx context.Context, record *model.VoteRecord) error {
	event, ok := f.events[record.EventID]
	if !ok {
		return model.ErrEventNotFound
	}
	user, ok := f.users[record.UserID]
	if !ok {
		return model.ErrUserNotFound
	}
	f.nextID++
	record.ID = f.nextID
	f.votes = append(f.votes, record)
	event.VoteNum += record.Num
	user.VoteNum -= record.Num
	return nil
}

func (f *fakeStore) VotesOfEvent(ctx context.Context, eventID int64) ([]*model.VoteRecord, error) {
	var records []*model.VoteRecord
	for _, record := range f.votes {
		if record.EventID == eventID {
			records = append(records, record)
		}
	}
	return records, nil
}

func (f *fakeStore) PlaceTrade(ctx context.Context, rank, amount int, eventID int64) (*model.TradeResult, error) {
	if _, ok := f.events[eventID]; !ok {
		return nil, model.ErrEventNotFound
	}
	incumbent, ok := f.trades[rank]
	if !ok {
		f.nextID++
		f.trades[rank] = &model.Trade{ID: f.nextID, Rank: rank, Amount: amount, EventID: eventID}
		return &model.TradeResult{Rank: rank, Amount: amount, EventID: eventID}, nil
	}
	if incumbent.Amount >= amount {
		return nil, model.ErrBidTooLow
	}
	evicted := incumbent.EventID
	delete(f.events, evicted)
	incumbent.Amount = amount
	incumbent.EventID = eventID
	return &model.TradeResult{Rank: rank, Amount: amount, EventID: eventID, EvictedEventID: evicted}, nil
}

func (f *fakeStore) RankSnapshot(ctx context.Context) ([]*model.RsEvent, []*model.Trade, error) {
	events := make([]*model.RsEvent, 0, len(f.events))
	for _, event := range f.events {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })

	trades := make([]*model.Trade, 0, len(f.trades))
	for _, trade := range f.trades {
		trades = append(trades, trade)
	}
	sort.Slice(trades, func(i, j int) bool { return trades[i].Rank < trades[j].Rank })
	return events, trades, nil
}

// noCache 永不命中的缓存
type noCache struct{}

func (noCache) GetRankedList(ctx context.Context) ([]model.EventView, bool, error) {
	return nil, false, nil
}
func (noCache) SetRankedList(ctx context.Context, views []model.EventView) error { return nil }
func (noCache) InvalidateRankedList(ctx context.Context) error                   { return nil }
func (noCache) GetUser(ctx context.Context, id int64) (*model.User, bool, error) {
	return nil, false, nil
}
func (noCache) SetUser(ctx context.Context, user *model.User) error { return nil }
func (noCache) DeleteUser(ctx context.Context, id int64) error      { return nil }

// noLock 总是成功的锁
type noLock struct{}

func (noLock) AcquireLock(lockName string, timeout time.Duration) (bool, error) { return true, nil }
func (noLock) RefreshLock(lockName string, timeout time.Duration) (bool, error) { return true, nil }
func (noLock) ReleaseLock(lockName string) error                                { return nil }
func (noLock) ReleaseAllLocks()                                                 {}
func (noLock) Close() error                                                     { return nil }

// noPublisher 丢弃所有变更事件
type noPublisher struct{}

func (noPublisher) SendChangeEvent(ctx context.Context, event *model.ChangeEvent) error {
	return nil
}

func newTestServer(store *fakeStore) *Server {
	cache := noCache{}
	rankService := service.NewRankService(store, cache)
	voteService := service.NewVoteService(store, store, store, cache, noPublisher{})
	tradeService := service.NewTradeService(store, store, cache, noLock{}, noPublisher{})
	return NewServer(rankService, voteService, tradeService)
}

func seedThreeEvents(store *fakeStore) (*model.User, []*model.RsEvent) {
	owner := store.addUser(&model.User{UserName: "idolice", VoteNum: 10})
	a := store.addEvent(&model.RsEvent{EventName: "第一条事件", Keyword: "无分类", VoteNum: 2, UserID: owner.ID})
	b := store.addEvent(&model.RsEvent{EventName: "第二条事件", Keyword: "无分类", VoteNum: 3, UserID: owner.ID})
	c := store.addEvent(&model.RsEvent{EventName: "第三条事件", Keyword: "无分类", VoteNum: 0, UserID: owner.ID})
	return owner, []*model.RsEvent{a, b, c}
}

func doRequest(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	server.Engine().ServeHTTP(recorder, req)
	return recorder
}

func TestGetRankedList(t *testing.T) {
	store := newFakeStore()
	seedThreeEvents(store)
	server := newTestServer(store)

	recorder := doRequest(t, server, http.MethodGet, "/rs/list", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("状态码错误: got %d, want 200", recorder.Code)
	}

	var views []model.EventView
	if err := json.Unmarshal(recorder.Body.Bytes(), &views); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(views) != 3 || views[0].EventName != "第二条事件" {
		t.Fatalf("榜单内容错误: %+v", views)
	}
	if strings.Contains(recorder.Body.String(), "userName") {
		t.Fatalf("榜单不应携带用户详情: %s", recorder.Body.String())
	}
}

func TestGetRankedListSliced(t *testing.T) {
	store := newFakeStore()
	seedThreeEvents(store)
	server := newTestServer(store)

	recorder := doRequest(t, server, http.MethodGet, "/rs/list?start=1&end=2", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("状态码错误: got %d, want 200", recorder.Code)
	}
	var views []model.EventView
	if err := json.Unmarshal(recorder.Body.Bytes(), &views); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("切片长度错误: got %d, want 2", len(views))
	}
}

func TestGetRankedListInvalidRange(t *testing.T) {
	store := newFakeStore()
	seedThreeEvents(store)
	server := newTestServer(store)

	for _, path := range []string{"/rs/list?start=1&end=9", "/rs/list?start=abc&end=2", "/rs/list?start=0&end=2"} {
		recorder := doRequest(t, server, http.MethodGet, path, "")
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("%s 状态码错误: got %d, want 400", path, recorder.Code)
		}
		if !strings.Contains(recorder.Body.String(), "invalid request param") {
			t.Fatalf("%s 错误消息错误: %s", path, recorder.Body.String())
		}
	}
}

func TestGetEventAtInvalidIndex(t *testing.T) {
	store := newFakeStore()
	seedThreeEvents(store)
	server := newTestServer(store)

	recorder := doRequest(t, server, http.MethodGet, "/rs/4", "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("状态码错误: got %d, want 400", recorder.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if body["error"] != "invalid index" {
		t.Fatalf("错误消息错误: %q", body["error"])
	}
}

func TestGetEventAt(t *testing.T) {
	store := newFakeStore()
	seedThreeEvents(store)
	server := newTestServer(store)

	recorder := doRequest(t, server, http.MethodGet, "/rs/1", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("状态码错误: got %d, want 200", recorder.Code)
	}
	var view model.EventView
	if err := json.Unmarshal(recorder.Body.Bytes(), &view); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if view.EventName != "第二条事件" {
		t.Fatalf("第1位事件错误: %+v", view)
	}
}

func TestPostEvent(t *testing.T) {
	store := newFakeStore()
	owner, _ := seedThreeEvents(store)
	server := newTestServer(store)

	body := `{"eventName":"第四条事件","keyword":"无分类","userId":` + itoa(owner.ID) + `}`
	recorder := doRequest(t, server, http.MethodPost, "/rs/event", body)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("状态码错误: got %d, want 201", recorder.Code)
	}

	// 未知用户
	recorder = doRequest(t, server, http.MethodPost, "/rs/event", `{"eventName":"x","keyword":"y","userId":404}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("未知用户状态码错误: got %d, want 400", recorder.Code)
	}
}

func TestPostVote(t *testing.T) {
	store := newFakeStore()
	owner, events := seedThreeEvents(store)
	server := newTestServer(store)

	body := `{"userId":` + itoa(owner.ID) + `,"voteNum":2,"time":"2025-06-01T12:00:00Z"}`
	recorder := doRequest(t, server, http.MethodPost, "/rs/vote/"+itoa(events[0].ID), body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("状态码错误: got %d, want 200, body=%s", recorder.Code, recorder.Body.String())
	}
	if events[0].VoteNum != 4 || owner.VoteNum != 8 {
		t.Fatalf("投票后数值错误: event=%d, user=%d", events[0].VoteNum, owner.VoteNum)
	}

	recorder = doRequest(t, server, http.MethodPost, "/rs/vote/404", body)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("未知事件状态码错误: got %d, want 400", recorder.Code)
	}
}

func TestPostBuy(t *testing.T) {
	store := newFakeStore()
	_, events := seedThreeEvents(store)
	server := newTestServer(store)

	recorder := doRequest(t, server, http.MethodPost, "/rs/buy/"+itoa(events[2].ID), `{"amount":100,"rank":1}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("购买状态码错误: got %d, want 200, body=%s", recorder.Code, recorder.Body.String())
	}

	// 同价出价被拒绝
	recorder = doRequest(t, server, http.MethodPost, "/rs/buy/"+itoa(events[0].ID), `{"amount":100,"rank":1}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("低出价状态码错误: got %d, want 400", recorder.Code)
	}

	// 更高出价触发淘汰
	recorder = doRequest(t, server, http.MethodPost, "/rs/buy/"+itoa(events[0].ID), `{"amount":200,"rank":1}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("高出价状态码错误: got %d, want 200", recorder.Code)
	}
	if _, ok := store.events[events[2].ID]; ok {
		t.Fatalf("被淘汰的事件应已删除")
	}
}

func TestPostUser(t *testing.T) {
	store := newFakeStore()
	server := newTestServer(store)
	config.AppConfig.User.InitialVoteNum = 10

	body := `{"userName":"idolice","gender":"female","email":"a@b.com","phone":"18888888888","age":19}`
	recorder := doRequest(t, server, http.MethodPost, "/user", body)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("注册状态码错误: got %d, want 201, body=%s", recorder.Code, recorder.Body.String())
	}
	var user model.User
	if err := json.Unmarshal(recorder.Body.Bytes(), &user); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if user.VoteNum != 10 {
		t.Fatalf("初始余额错误: got %d, want 10", user.VoteNum)
	}

	// 手机号不合法
	bad := `{"userName":"idolice","gender":"female","email":"a@b.com","phone":"28888888888","age":19}`
	recorder = doRequest(t, server, http.MethodPost, "/user", bad)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("非法手机号状态码错误: got %d, want 400", recorder.Code)
	}

	// 用户名超长
	bad = `{"userName":"idolice88","gender":"female","email":"a@b.com","phone":"18888888888","age":19}`
	recorder = doRequest(t, server, http.MethodPost, "/user", bad)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("超长用户名状态码错误: got %d, want 400", recorder.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
