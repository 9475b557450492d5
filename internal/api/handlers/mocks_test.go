package handlers_test

import (
	"context"
	"net/http"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/application/services"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/session"
)

type MockSignInService struct {
	mock.Mock
}

func (m *MockSignInService) LoginURL(provider, next, roleHint string) *services.LoginStart {
	args := m.Called(provider, next, roleHint)
	return args.Get(0).(*services.LoginStart)
}

func (m *MockSignInService) SignOut(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

type MockCallbackCompleter struct {
	mock.Mock
}

func (m *MockCallbackCompleter) Complete(ctx context.Context, in services.CallbackInput) (*services.CallbackResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CallbackResult), args.Error(1)
}

type MockAccountManager struct {
	mock.Mock
}

func (m *MockAccountManager) SignUpWithEmail(ctx context.Context, in services.EmailSignUp) (*services.AccountResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AccountResult), args.Error(1)
}

func (m *MockAccountManager) SignInWithEmail(ctx context.Context, email, password, next string) (*services.AccountResult, error) {
	args := m.Called(ctx, email, password, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AccountResult), args.Error(1)
}

func (m *MockAccountManager) SignInAsGuest(ctx context.Context, in services.GuestSignIn) (*services.AccountResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AccountResult), args.Error(1)
}

func (m *MockAccountManager) LinkEmail(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockAccountManager) SetPassword(ctx context.Context, password string) error {
	return m.Called(ctx, password).Error(0)
}

type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) Me(ctx context.Context) (*entities.Profile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Profile), args.Error(1)
}

func (m *MockProfileService) Complete(ctx context.Context, completion *entities.ProfileCompletion) (*entities.Profile, error) {
	args := m.Called(ctx, completion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Profile), args.Error(1)
}

func (m *MockProfileService) LoginStatus(ctx context.Context) (*entities.LoginStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LoginStatus), args.Error(1)
}

func (m *MockProfileService) CompleteFirstLogin(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockProfileService) ListProfiles(ctx context.Context) ([]*entities.Profile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Profile), args.Error(1)
}

type MockRoleChanger struct {
	mock.Mock
}

func (m *MockRoleChanger) ChangeRole(ctx context.Context, userID, rawRole string) (*entities.Profile, error) {
	args := m.Called(ctx, userID, rawRole)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Profile), args.Error(1)
}

type MockRequestService struct {
	mock.Mock
}

func (m *MockRequestService) Create(ctx context.Context, input *entities.CreateRequestInput) (*entities.MaintenanceRequest, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MaintenanceRequest), args.Error(1)
}

func (m *MockRequestService) ListMine(ctx context.Context, limit, offset int) ([]*entities.MaintenanceRequest, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.MaintenanceRequest), args.Error(1)
}

func (m *MockRequestService) ListAll(ctx context.Context, filter entities.RequestFilter) ([]*entities.MaintenanceRequest, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.MaintenanceRequest), args.Error(1)
}

func (m *MockRequestService) Get(ctx context.Context, id string) (*entities.MaintenanceRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MaintenanceRequest), args.Error(1)
}

func (m *MockRequestService) UpdateStatus(ctx context.Context, id string, update *entities.StatusUpdate) (*entities.MaintenanceRequest, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MaintenanceRequest), args.Error(1)
}

func (m *MockRequestService) Search(ctx context.Context, params repositories.RequestSearchParams) ([]*entities.MaintenanceRequest, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.MaintenanceRequest), args.Error(1)
}

type MockFacilityService struct {
	mock.Mock
}

func (m *MockFacilityService) List(ctx context.Context, includeInactive bool) ([]*entities.Facility, error) {
	args := m.Called(ctx, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Facility), args.Error(1)
}

func (m *MockFacilityService) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Facility), args.Error(1)
}

func (m *MockFacilityService) Create(ctx context.Context, input *entities.FacilityInput) (*entities.Facility, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Facility), args.Error(1)
}

func (m *MockFacilityService) Update(ctx context.Context, id string, input *entities.FacilityInput) (*entities.Facility, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Facility), args.Error(1)
}

func (m *MockFacilityService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) List(ctx context.Context, unreadOnly bool, limit int) ([]*entities.Notification, error) {
	args := m.Called(ctx, unreadOnly, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Notification), args.Error(1)
}

func (m *MockNotificationService) UnreadCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockAnalyticsService struct {
	mock.Mock
}

func (m *MockAnalyticsService) RequestAnalytics(ctx context.Context) (*entities.RequestAnalytics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.RequestAnalytics), args.Error(1)
}

type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) UserDashboard(ctx context.Context) (*entities.UserDashboard, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.UserDashboard), args.Error(1)
}

func (m *MockDashboardService) AdminDashboard(ctx context.Context) (*entities.AdminDashboard, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AdminDashboard), args.Error(1)
}

// MockEventBus delivers published events to in-process subscribers
type MockEventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *entities.RequestEvent
	subscribed  chan string
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{
		subscribers: make(map[string][]chan *entities.RequestEvent),
		subscribed:  make(chan string, 10),
	}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.RequestEvent) error {
	m.mu.RLock()
	channels := append([]chan *entities.RequestEvent(nil), m.subscribers[channel]...)
	m.mu.RUnlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.RequestEvent, error) {
	m.mu.Lock()
	ch := make(chan *entities.RequestEvent, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	m.mu.Unlock()
	m.subscribed <- channel
	return ch, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, channel)
	return nil
}

func (m *MockEventBus) Close() error {
	return nil
}

func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(session.WithPrincipal(r.Context(), &session.Principal{
		UserID: userID,
		Email:  userID + "@example.com",
		Role:   entities.RoleUser,
	}))
}

func asAdmin(r *http.Request, userID string) *http.Request {
	return r.WithContext(session.WithPrincipal(r.Context(), &session.Principal{
		UserID:     userID,
		Email:      userID + "@example.com",
		Role:       entities.RoleAdmin,
		RoleSource: entities.RoleSourceAppMetadata,
	}))
}
