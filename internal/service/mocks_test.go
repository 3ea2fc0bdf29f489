package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/queue"
	"github.com/unclebandit/crm-backend/internal/repository"
)

var (
	_ repository.CampaignRepositoryInterface         = (*MockCampaignRepo)(nil)
	_ repository.SegmentRepositoryInterface          = (*MockSegmentRepo)(nil)
	_ repository.CustomerRepositoryInterface         = (*MockCustomerRepo)(nil)
	_ repository.CommunicationLogRepositoryInterface = (*MockLogRepo)(nil)
	_ repository.UserRepositoryInterface             = (*MockUserRepo)(nil)
	_ repository.OrderRepositoryInterface            = (*MockOrderRepo)(nil)
	_ queue.Queue                                    = (*MockQueue)(nil)
)

// Mock campaign repository
type MockCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*model.Campaign
	order     []string

	statusUpdates []model.CampaignStatus
	completeCalls [][]string
	completeErr   error
}

func NewMockCampaignRepo(campaigns ...*model.Campaign) *MockCampaignRepo {
	m := &MockCampaignRepo{campaigns: map[string]*model.Campaign{}}
	for _, c := range campaigns {
		m.campaigns[c.ID] = c
		m.order = append(m.order, c.ID)
	}
	return m
}

func (m *MockCampaignRepo) Create(_ context.Context, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.CreatedAt = time.Now()
	m.campaigns[c.ID] = c
	m.order = append(m.order, c.ID)
	return nil
}

func (m *MockCampaignRepo) GetByID(_ context.Context, id string) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *MockCampaignRepo) List(_ context.Context, ownerID string, offset, limit int, status string) ([]*model.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.Campaign
	for _, id := range m.order {
		c, ok := m.campaigns[id]
		if !ok || c.OwnerID != ownerID || (status != "" && string(c.Status) != status) {
			continue
		}
		all = append(all, c)
	}
	if offset >= len(all) {
		return []*model.Campaign{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *MockCampaignRepo) Update(_ context.Context, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[c.ID]; !ok {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *MockCampaignRepo) UpdateStatus(_ context.Context, id string, status model.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	c.Status = status
	m.statusUpdates = append(m.statusUpdates, status)
	return nil
}

func (m *MockCampaignRepo) TransitionStatus(_ context.Context, id string, from, to model.CampaignStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return false, appErrors.NewCampaignNotFound(id)
	}
	if c.Status != from {
		return false, nil
	}
	c.Status = to
	m.statusUpdates = append(m.statusUpdates, to)
	return true, nil
}

func (m *MockCampaignRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	delete(m.campaigns, id)
	return nil
}

func (m *MockCampaignRepo) CompleteIfDelivered(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeCalls = append(m.completeCalls, ids)
	if m.completeErr != nil {
		return 0, m.completeErr
	}
	return int64(len(ids)), nil
}

func (m *MockCampaignRepo) status(id string) model.CampaignStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaigns[id].Status
}

// Mock segment repository
type MockSegmentRepo struct {
	segments map[string]*model.Segment

	// campaigns receives the campaigns stored by CreateWithCampaign.
	campaigns *MockCampaignRepo
	createErr error
}

func NewMockSegmentRepo(segments ...*model.Segment) *MockSegmentRepo {
	m := &MockSegmentRepo{segments: map[string]*model.Segment{}, campaigns: NewMockCampaignRepo()}
	for _, s := range segments {
		m.segments[s.ID] = s
	}
	return m
}

func (m *MockSegmentRepo) Create(_ context.Context, s *model.Segment) error {
	m.segments[s.ID] = s
	return nil
}

func (m *MockSegmentRepo) CreateWithCampaign(ctx context.Context, s *model.Segment, c *model.Campaign) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.segments[s.ID] = s
	return m.campaigns.Create(ctx, c)
}

func (m *MockSegmentRepo) GetByID(_ context.Context, id string) (*model.Segment, error) {
	s, ok := m.segments[id]
	if !ok {
		return nil, appErrors.NewNotFound("segment", id)
	}
	cp := *s
	return &cp, nil
}

func (m *MockSegmentRepo) List(_ context.Context, ownerID string) ([]*model.Segment, error) {
	out := []*model.Segment{}
	for _, s := range m.segments {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockSegmentRepo) Update(_ context.Context, s *model.Segment) error {
	if _, ok := m.segments[s.ID]; !ok {
		return appErrors.NewNotFound("segment", s.ID)
	}
	cp := *s
	m.segments[s.ID] = &cp
	return nil
}

func (m *MockSegmentRepo) Delete(_ context.Context, id string) error {
	delete(m.segments, id)
	return nil
}

// Mock customer repository. Segment membership ignores the rules and returns
// every customer of the owner.
type MockCustomerRepo struct {
	customers []model.Customer
	listErr   error
	upserted  []*model.Customer
}

func (m *MockCustomerRepo) GetByID(_ context.Context, id string) (*model.Customer, error) {
	for _, c := range m.customers {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, appErrors.NewNotFound("customer", id)
}

func (m *MockCustomerRepo) Upsert(_ context.Context, c *model.Customer) error {
	m.upserted = append(m.upserted, c)
	return nil
}

func (m *MockCustomerRepo) ListBySegment(_ context.Context, ownerID string, _ model.RuleTree) ([]model.Customer, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []model.Customer{}
	for _, c := range m.customers {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockCustomerRepo) CountBySegment(ctx context.Context, ownerID string, tree model.RuleTree) (int, error) {
	members, err := m.ListBySegment(ctx, ownerID, tree)
	return len(members), err
}

// Mock communication log repository
type MockLogRepo struct {
	mu         sync.Mutex
	logs       []model.CommunicationLog
	createErr  error
	applyCalls int

	// failApplies makes that many ApplyReceipts calls fail before any succeeds.
	failApplies int
}

func (m *MockLogRepo) CreatePending(_ context.Context, campaignID string, customerIDs []string) ([]model.CommunicationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	created := make([]model.CommunicationLog, 0, len(customerIDs))
	for _, id := range customerIDs {
		l := model.CommunicationLog{
			ID:         fmt.Sprintf("log-%d", len(m.logs)+1),
			CampaignID: campaignID,
			CustomerID: id,
			Status:     model.LogPending,
			CreatedAt:  time.Now(),
		}
		m.logs = append(m.logs, l)
		created = append(created, l)
	}
	return created, nil
}

func (m *MockLogRepo) ApplyReceipts(_ context.Context, receipts []model.DeliveryReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls++
	if m.failApplies > 0 {
		m.failApplies--
		return errors.New("connection reset by peer")
	}
	now := time.Now()
	for _, r := range receipts {
		for i := range m.logs {
			l := &m.logs[i]
			if l.CampaignID != r.CampaignID || l.CustomerID != r.CustomerID {
				continue
			}
			l.Status = r.Status
			switch r.Status {
			case model.LogSent:
				l.SentAt = &now
			case model.LogFailed:
				l.Error = r.Error
			}
		}
	}
	return nil
}

func (m *MockLogRepo) StatusCounts(_ context.Context, campaignID string) (map[model.LogStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[model.LogStatus]int{}
	for _, l := range m.logs {
		if l.CampaignID == campaignID {
			counts[l.Status]++
		}
	}
	return counts, nil
}

func (m *MockLogRepo) byCustomer(customerID string) model.CommunicationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.CustomerID == customerID {
			return l
		}
	}
	return model.CommunicationLog{}
}

// Mock queue recording campaign tasks. FailAt makes the publish with that
// index fail; -1 disables it.
type MockQueue struct {
	mu     sync.Mutex
	tasks  []model.CampaignTask
	other  []any
	FailAt int
}

func NewMockQueue() *MockQueue { return &MockQueue{FailAt: -1} }

func (q *MockQueue) Publish(_ context.Context, topic string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if topic != queue.TopicCampaign {
		q.other = append(q.other, payload)
		return nil
	}
	if q.FailAt >= 0 && len(q.tasks) == q.FailAt {
		return errors.New("broker unavailable")
	}
	q.tasks = append(q.tasks, payload.(model.CampaignTask))
	return nil
}

func (q *MockQueue) Consume(context.Context, string, queue.Handler) error { return nil }
func (q *MockQueue) Close() error                                        { return nil }

func (q *MockQueue) Tasks() []model.CampaignTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.CampaignTask(nil), q.tasks...)
}

// Mock user repository
type MockUserRepo struct {
	users map[string]bool
}

func (m *MockUserRepo) Exists(_ context.Context, id string) (bool, error) {
	return m.users[id], nil
}

// Mock order repository
type MockOrderRepo struct {
	created []*model.Order
}

func (m *MockOrderRepo) Create(_ context.Context, o *model.Order) error {
	m.created = append(m.created, o)
	return nil
}
