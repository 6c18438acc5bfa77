package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"zetsuserv/internal/audit"
	"zetsuserv/internal/clock"
	"zetsuserv/internal/credential"
	"zetsuserv/internal/devcode"
	"zetsuserv/internal/order/domain"
	"zetsuserv/internal/order/repository"
	"zetsuserv/internal/security"
)

// Sentinel errors for the tracking service; handler maps them to HTTP codes.
var (
	ErrOrderNotFound = errors.New("order not found")
)

// credentialStore adapts the order repository to the credential store
// contract, keyed by order id. Access keys are reusable, so Consume is never
// reached.
type credentialStore struct {
	repo repository.Repository
}

func (s credentialStore) Read(ctx context.Context, ref credential.Ref) (*credential.Record, error) {
	return s.repo.ReadCredential(ctx, ref.ID)
}

func (s credentialStore) Write(ctx context.Context, ref credential.Ref, rec credential.Record, prevLastSentAt *time.Time) error {
	return s.repo.WriteCredential(ctx, ref.ID, rec, prevLastSentAt)
}

func (s credentialStore) Consume(ctx context.Context, ref credential.Ref, expectedHash string) error {
	return errors.New("access keys are reusable and cannot be consumed")
}

func orderRef(id string) credential.Ref {
	return credential.Ref{Entity: credential.EntityOrder, ID: id}
}

// CreateOrderInput is the intake form payload for a new order.
type CreateOrderInput struct {
	ClientName    string
	ClientEmail   string
	Phone         string
	ProjectTitle  string
	ProjectType   string
	PagesRequired int
	Budget        string
	Details       string
}

// TrackingView is the gated per-order view: the order, its progress steps, and
// the derived completion percentage.
type TrackingView struct {
	Order   *domain.Order
	Steps   []domain.Step
	Percent int
}

// TrackingService implements order intake, access-key issuance, the tracking
// auth gate, and progress step transitions.
type TrackingService struct {
	repo    repository.Repository
	issuer  *credential.Issuer
	gate    *credential.Gate
	grants  *security.GrantProvider
	clk     clock.Clock
	auditor audit.AuditLogger

	// devCodes receives issued plaintext keys when dev code mode is on.
	// nil in production.
	devCodes devcode.Store
}

// NewTrackingService returns a TrackingService wired over repo. The access-key
// lifecycle (generation, hashing, supersession on regenerate) runs through the
// credential issuer and gate; successful auth yields a signed grant from
// grants.
func NewTrackingService(
	repo repository.Repository,
	hasher *security.Hasher,
	gen credential.Generator,
	dispatcher credential.Dispatcher,
	grants *security.GrantProvider,
	clk clock.Clock,
	auditor audit.AuditLogger,
	devCodes devcode.Store,
) (*TrackingService, error) {
	store := credentialStore{repo: repo}
	gate, err := credential.NewGate(store, hasher, clk)
	if err != nil {
		return nil, err
	}
	return &TrackingService{
		repo:    repo,
		issuer:  credential.NewIssuer(store, gen, hasher, dispatcher, clk, 0, 0),
		gate:    gate,
		grants:  grants,
		clk:     clk,
		auditor: auditor,

		devCodes: devCodes,
	}, nil
}

// CreateOrder persists the order with its default progress steps and issues
// the first access key, emailed to the client. A delivery failure leaves the
// order and key committed; the returned error then wraps
// credential.ErrDeliveryFailed.
func (s *TrackingService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	now := s.clk.Now()
	order := &domain.Order{
		ID:            uuid.New().String(),
		ClientName:    strings.TrimSpace(in.ClientName),
		ClientEmail:   strings.TrimSpace(strings.ToLower(in.ClientEmail)),
		Phone:         strings.TrimSpace(in.Phone),
		ProjectTitle:  strings.TrimSpace(in.ProjectTitle),
		ProjectType:   strings.TrimSpace(in.ProjectType),
		PagesRequired: in.PagesRequired,
		Budget:        strings.TrimSpace(in.Budget),
		Details:       in.Details,
		Status:        domain.StatusNew,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, order, domain.DefaultSteps()); err != nil {
		return nil, err
	}
	if s.auditor != nil {
		s.auditor.LogEvent(ctx, order.ClientEmail, "order_created", "order/"+order.ID, order.PublicCode())
	}
	if _, _, err := s.ensureKey(ctx, order); err != nil {
		return order, err
	}
	return order, nil
}

// TrackAuth authenticates a tracking request: public code names the order,
// access key proves it. On success it returns the order plus a signed grant
// scoped to (sessionID, publicCode). Malformed code, unknown order, checksum
// mismatch, and wrong key are distinct errors internally but must all render
// as credential.GenericAuthMessage; the gate keeps their timing aligned.
func (s *TrackingService) TrackAuth(ctx context.Context, publicCode, accessKey, sessionID string) (*domain.Order, string, time.Time, error) {
	publicCode = strings.TrimSpace(strings.ToUpper(publicCode))
	order, lookupErr := s.lookup(ctx, publicCode)
	if lookupErr != nil && !errors.Is(lookupErr, credential.ErrNotFound) {
		return nil, "", time.Time{}, lookupErr
	}
	id := ""
	if order != nil {
		id = order.ID
	}
	// An unknown or malformed code flows through the gate with a blank id so
	// the bcrypt timing pad still runs.
	if _, err := s.gate.Verify(ctx, orderRef(id), credential.KindAccessKey, accessKey, sessionID); err != nil {
		if s.auditor != nil && credential.IsAuthFailure(err) {
			s.auditor.LogEvent(ctx, "", "track_auth_failed", "order/"+publicCode, "")
		}
		return nil, "", time.Time{}, err
	}
	token, expiresAt, err := s.grants.Issue(sessionID, publicCode)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if s.auditor != nil {
		s.auditor.LogEvent(ctx, order.ClientEmail, "track_auth_succeeded", "order/"+order.ID, publicCode)
	}
	return order, token, expiresAt, nil
}

// GetTracking returns the gated tracking view for a public code. Callers must
// have validated a grant for this code first.
func (s *TrackingService) GetTracking(ctx context.Context, publicCode string) (*TrackingView, error) {
	order, err := s.lookup(ctx, strings.TrimSpace(strings.ToUpper(publicCode)))
	if err != nil {
		return nil, err
	}
	steps, err := s.repo.ListSteps(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &TrackingView{Order: order, Steps: steps, Percent: domain.Percent(steps)}, nil
}

// RegenerateAccessKey issues a fresh key for the order, superseding the old
// one immediately, and emails it to the client. Regeneration is not rate
// limited. The plaintext is returned once for the admin response and is not
// retained.
func (s *TrackingService) RegenerateAccessKey(ctx context.Context, orderID, actor string) (string, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", ErrOrderNotFound
	}
	plaintext, err := s.issuer.Issue(ctx, orderRef(order.ID), credential.KindAccessKey, order.ClientEmail)
	if err != nil && !errors.Is(err, credential.ErrDeliveryFailed) {
		return "", err
	}
	if s.auditor != nil {
		s.auditor.LogEvent(ctx, actor, "access_key_regenerated", "order/"+order.ID, order.PublicCode())
	}
	if s.devCodes != nil && plaintext != "" {
		s.devCodes.Put(ctx, order.ClientEmail, plaintext, s.clk.Now().Add(24*time.Hour))
	}
	return plaintext, err
}

// EnsureAccessKey issues a key only if the order has none. Repeated calls are
// idempotent and never supersede an existing key. The returned bool reports
// whether a new key was issued.
func (s *TrackingService) EnsureAccessKey(ctx context.Context, orderID string) (string, bool, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return "", false, err
	}
	if order == nil {
		return "", false, ErrOrderNotFound
	}
	return s.ensureKey(ctx, order)
}

// StartStep activates a pending progress step.
func (s *TrackingService) StartStep(ctx context.Context, orderID string, number int, actor string) error {
	return s.transitionStep(ctx, orderID, number, actor, "step_started", domain.StartStep)
}

// CompleteStep completes the active progress step and activates the next one.
func (s *TrackingService) CompleteStep(ctx context.Context, orderID string, number int, actor string) error {
	return s.transitionStep(ctx, orderID, number, actor, "step_completed", domain.CompleteStep)
}

// UpdateStatus sets the order's lifecycle status.
func (s *TrackingService) UpdateStatus(ctx context.Context, orderID string, status domain.Status, actor string) error {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if err := s.repo.UpdateStatus(ctx, orderID, status); err != nil {
		return err
	}
	if s.auditor != nil {
		s.auditor.LogEvent(ctx, actor, "order_status_updated", "order/"+orderID, string(status))
	}
	return nil
}

// GetByID returns the order for id, or nil if not found.
func (s *TrackingService) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TrackingService) ensureKey(ctx context.Context, order *domain.Order) (string, bool, error) {
	plaintext, issued, err := s.issuer.Ensure(ctx, orderRef(order.ID), credential.KindAccessKey, order.ClientEmail)
	if err != nil && !errors.Is(err, credential.ErrDeliveryFailed) {
		return "", false, err
	}
	if s.devCodes != nil && plaintext != "" {
		s.devCodes.Put(ctx, order.ClientEmail, plaintext, s.clk.Now().Add(24*time.Hour))
	}
	return plaintext, issued, err
}

// lookup resolves a public code to its order: parse the sequence, load, and
// check the checksum by regenerating the code from the stored order.
func (s *TrackingService) lookup(ctx context.Context, publicCode string) (*domain.Order, error) {
	seq, err := domain.ParsePublicCode(publicCode)
	if err != nil {
		return nil, credential.ErrNotFound
	}
	order, err := s.repo.GetBySeq(ctx, seq)
	if err != nil {
		return nil, err
	}
	if order == nil || order.PublicCode() != publicCode {
		return nil, credential.ErrNotFound
	}
	return order, nil
}

func (s *TrackingService) transitionStep(ctx context.Context, orderID string, number int, actor, action string, transition func([]domain.Step, int, time.Time) error) error {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	steps, err := s.repo.ListSteps(ctx, orderID)
	if err != nil {
		return err
	}
	if err := transition(steps, number, s.clk.Now()); err != nil {
		return err
	}
	if err := s.repo.SaveSteps(ctx, orderID, steps); err != nil {
		return err
	}
	if s.auditor != nil {
		s.auditor.LogEvent(ctx, actor, action, "order/"+orderID, "")
	}
	return nil
}
