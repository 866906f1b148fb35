package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/lvdashuaibi/hotrank/internal/model"
)

var errKafkaDown = errors.New("kafka不可用")

// memStore 内存实现的存储，行为与MySQL仓库的契约一致
type memStore struct {
	mu     sync.Mutex
	events map[int64]*model.RsEvent
	users  map[int64]*model.User
	votes  []*model.VoteRecord
	trades map[int]*model.Trade
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{
		events: make(map[int64]*model.RsEvent),
		users:  make(map[int64]*model.User),
		trades: make(map[int]*model.Trade),
	}
}

func (m *memStore) addUser(user *model.User) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = user
	return user
}

func (m *memStore) addEvent(event *model.RsEvent) *model.RsEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	event.ID = m.nextID
	m.events[event.ID] = event
	return event
}

func (m *memStore) sortedEvents() []*model.RsEvent {
	events := make([]*model.RsEvent, 0, len(m.events))
	for _, event := range m.events {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events
}

func (m *memStore) FindEvent(ctx context.Context, id int64) (*model.RsEvent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	return event, ok, nil
}

func (m *memStore) AllEvents(ctx context.Context) ([]*model.RsEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedEvents(), nil
}

func (m *memStore) CountEvents(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events), nil
}

func (m *memStore) CreateEvent(ctx context.Context, event *model.RsEvent) error {
	m.addEvent(event)
	return nil
}

func (m *memStore) FindUser(ctx context.Context, id int64) (*model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *memStore) CreateUser(ctx context.Context, user *model.User) error {
	m.addUser(user)
	return nil
}

func (m *memStore) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for eventID, event := range m.events {
		if event.UserID == id {
			for rank, trade := range m.trades {
				if trade.EventID == eventID {
					delete(m.trades, rank)
				}
			}
			delete(m.events, eventID)
		}
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) CastVote(ctx context.Context, record *model.VoteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[record.EventID]
	if !ok {
		return model.ErrEventNotFound
	}
	user, ok := m.users[record.UserID]
	if !ok {
		return model.ErrUserNotFound
	}

	m.nextID++
	record.ID = m.nextID
	m.votes = append(m.votes, record)
	event.VoteNum += record.Num
	user.VoteNum -= record.Num
	return nil
}

func (m *memStore) VotesOfEvent(ctx context.Context, eventID int64) ([]*model.VoteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []*model.VoteRecord
	for _, record := range m.votes {
		if record.EventID == eventID {
			records = append(records, record)
		}
	}
	return records, nil
}

func (m *memStore) PlaceTrade(ctx context.Context, rank, amount int, eventID int64) (*model.TradeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; !ok {
		return nil, model.ErrEventNotFound
	}

	incumbent, ok := m.trades[rank]
	if !ok {
		m.nextID++
		m.trades[rank] = &model.Trade{ID: m.nextID, Rank: rank, Amount: amount, EventID: eventID}
		return &model.TradeResult{Rank: rank, Amount: amount, EventID: eventID}, nil
	}

	if incumbent.Amount >= amount {
		return nil, model.ErrBidTooLow
	}

	evicted := incumbent.EventID
	delete(m.events, evicted)
	incumbent.Amount = amount
	incumbent.EventID = eventID
	return &model.TradeResult{Rank: rank, Amount: amount, EventID: eventID, EvictedEventID: evicted}, nil
}

func (m *memStore) RankSnapshot(ctx context.Context) ([]*model.RsEvent, []*model.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	trades := make([]*model.Trade, 0, len(m.trades))
	for _, trade := range m.trades {
		trades = append(trades, trade)
	}
	sort.Slice(trades, func(i, j int) bool { return trades[i].Rank < trades[j].Rank })

	return m.sortedEvents(), trades, nil
}

// memCache 内存缓存，记录失效次数
type memCache struct {
	mu          sync.Mutex
	list        []model.EventView
	hasList     bool
	users       map[int64]*model.User
	invalidated int
}

func newMemCache() *memCache {
	return &memCache{users: make(map[int64]*model.User)}
}

func (c *memCache) GetRankedList(ctx context.Context) ([]model.EventView, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list, c.hasList, nil
}

func (c *memCache) SetRankedList(ctx context.Context, views []model.EventView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = views
	c.hasList = true
	return nil
}

func (c *memCache) InvalidateRankedList(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = nil
	c.hasList = false
	c.invalidated++
	return nil
}

func (c *memCache) GetUser(ctx context.Context, id int64) (*model.User, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	user, ok := c.users[id]
	return user, ok, nil
}

func (c *memCache) SetUser(ctx context.Context, user *model.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[user.ID] = user
	return nil
}

func (c *memCache) DeleteUser(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, id)
	return nil
}

// fakeLock 记录加锁释放顺序的假锁
type fakeLock struct {
	mu       sync.Mutex
	acquired []string
	released []string
}

func (l *fakeLock) AcquireLock(lockName string, timeout time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquired = append(l.acquired, lockName)
	return true, nil
}

func (l *fakeLock) RefreshLock(lockName string, timeout time.Duration) (bool, error) {
	return true, nil
}

func (l *fakeLock) ReleaseLock(lockName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, lockName)
	return nil
}

func (l *fakeLock) ReleaseAllLocks() {}

func (l *fakeLock) Close() error { return nil }

// fakePublisher 记录发布的变更事件，可配置为失败
type fakePublisher struct {
	mu     sync.Mutex
	events []*model.ChangeEvent
	fail   bool
}

func (p *fakePublisher) SendChangeEvent(ctx context.Context, event *model.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errKafkaDown
	}
	p.events = append(p.events, event)
	return nil
}
