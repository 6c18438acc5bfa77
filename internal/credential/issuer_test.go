package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"zetsuserv/internal/clock"
)

// memStore implements Store in memory with the same compare-and-swap
// semantics as the SQL-backed stores.
type memStore struct {
	mu   sync.Mutex
	recs map[string]Record
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]Record)}
}

// seed creates an empty record for ref, like an entity row with no credential.
func (s *memStore) seed(ref Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[ref.String()] = Record{}
}

func (s *memStore) Read(ctx context.Context, ref Ref) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[ref.String()]
	if !ok {
		return nil, nil
	}
	c := rec
	return &c, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (s *memStore) Write(ctx context.Context, ref Ref, rec Record, prevLastSentAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.recs[ref.String()]
	if !ok || !sameTime(cur.LastSentAt, prevLastSentAt) {
		return ErrConflict
	}
	s.recs[ref.String()] = rec
	return nil
}

func (s *memStore) Consume(ctx context.Context, ref Ref, expectedHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.recs[ref.String()]
	if !ok || cur.Hash == "" || cur.Hash != expectedHash {
		return ErrConflict
	}
	cur.Hash = ""
	cur.ExpiresAt = nil
	s.recs[ref.String()] = cur
	return nil
}

// fakeHasher is a transparent stand-in for bcrypt so tests stay fast.
type fakeHasher struct{}

func (fakeHasher) Hash(secret []byte) (string, error) { return "h:" + string(secret), nil }

func (fakeHasher) Compare(hash string, secret []byte) error {
	if hash == "h:"+string(secret) {
		return nil
	}
	return errors.New("hash mismatch")
}

// seqGenerator returns secret-1, secret-2, ... so tests can tell issuances apart.
type seqGenerator struct {
	mu sync.Mutex
	n  int
}

func (g *seqGenerator) Generate(kind Kind) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("secret-%d", g.n), nil
}

type recordingDispatcher struct {
	mu    sync.Mutex
	sends []string
	err   error
}

func (d *recordingDispatcher) Send(ctx context.Context, destination, plaintext string, kind Kind) error {
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sends = append(d.sends, destination+"|"+plaintext)
	return nil
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testIssuer(store Store, dispatcher Dispatcher, now *time.Time) *Issuer {
	clk := clock.Func(func() time.Time { return *now })
	return NewIssuer(store, &seqGenerator{}, fakeHasher{}, dispatcher, clk, 10*time.Minute, time.Minute)
}

func TestIssuer_Issue_VerificationCode(t *testing.T) {
	store := newMemStore()
	dispatcher := &recordingDispatcher{}
	now := t0
	issuer := testIssuer(store, dispatcher, &now)
	ref := Ref{Entity: EntityAccount, ID: "a-1"}
	store.seed(ref)

	plaintext, err := issuer.Issue(context.Background(), ref, KindVerificationCode, "a@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if plaintext != "secret-1" {
		t.Errorf("plaintext = %q", plaintext)
	}
	if len(dispatcher.sends) != 1 || dispatcher.sends[0] != "a@example.com|secret-1" {
		t.Errorf("sends = %v", dispatcher.sends)
	}

	rec, _ := store.Read(context.Background(), ref)
	if rec.Hash != "h:secret-1" {
		t.Errorf("hash = %q", rec.Hash)
	}
	if rec.ExpiresAt == nil || !rec.ExpiresAt.Equal(t0.Add(10*time.Minute)) {
		t.Errorf("expires_at = %v, want t0+10m", rec.ExpiresAt)
	}
	if rec.LastSentAt == nil || !rec.LastSentAt.Equal(t0) {
		t.Errorf("last_sent_at = %v, want t0", rec.LastSentAt)
	}
}

func TestIssuer_Issue_AccessKeyNeverExpires(t *testing.T) {
	store := newMemStore()
	now := t0
	issuer := testIssuer(store, &recordingDispatcher{}, &now)
	ref := Ref{Entity: EntityOrder, ID: "o-1"}
	store.seed(ref)

	if _, err := issuer.Issue(context.Background(), ref, KindAccessKey, "a@example.com"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	rec, _ := store.Read(context.Background(), ref)
	if rec.ExpiresAt != nil {
		t.Errorf("access key expires_at = %v, want nil", rec.ExpiresAt)
	}
}

func TestIssuer_Issue_CooldownOnlyForVerification(t *testing.T) {
	store := newMemStore()
	now := t0
	issuer := testIssuer(store, &recordingDispatcher{}, &now)
	accountRef := Ref{Entity: EntityAccount, ID: "a-1"}
	orderRef := Ref{Entity: EntityOrder, ID: "o-1"}
	store.seed(accountRef)
	store.seed(orderRef)
	ctx := context.Background()

	if _, err := issuer.Issue(ctx, accountRef, KindVerificationCode, "a@example.com"); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	now = t0.Add(10 * time.Second)
	_, err := issuer.Issue(ctx, accountRef, KindVerificationCode, "a@example.com")
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("err = %v, want RateLimitedError", err)
	}
	if rl.RetryAfter != 50*time.Second {
		t.Errorf("retry_after = %s, want 50s", rl.RetryAfter)
	}

	// Access-key regeneration has no cooldown.
	if _, err := issuer.Issue(ctx, orderRef, KindAccessKey, "a@example.com"); err != nil {
		t.Fatalf("key issue: %v", err)
	}
	if _, err := issuer.Issue(ctx, orderRef, KindAccessKey, "a@example.com"); err != nil {
		t.Fatalf("immediate key reissue: %v", err)
	}
}

func TestIssuer_Issue_DeliveryFailureKeepsCredential(t *testing.T) {
	store := newMemStore()
	dispatcher := &recordingDispatcher{err: errors.New("mail api 500")}
	now := t0
	issuer := testIssuer(store, dispatcher, &now)
	ref := Ref{Entity: EntityAccount, ID: "a-1"}
	store.seed(ref)

	plaintext, err := issuer.Issue(context.Background(), ref, KindVerificationCode, "a@example.com")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("err = %v, want ErrDeliveryFailed", err)
	}
	if plaintext == "" {
		t.Error("plaintext must be returned so the caller can expose it in dev mode")
	}
	rec, _ := store.Read(context.Background(), ref)
	if rec.Hash == "" {
		t.Error("credential must stay committed when delivery fails")
	}
	if strings.Contains(err.Error(), plaintext) {
		t.Error("error text must not leak the plaintext")
	}
}

func TestIssuer_Issue_MissingEntity(t *testing.T) {
	store := newMemStore()
	now := t0
	issuer := testIssuer(store, &recordingDispatcher{}, &now)

	// No seeded record: the CAS write cannot match anything.
	_, err := issuer.Issue(context.Background(), Ref{Entity: EntityAccount, ID: "ghost"}, KindVerificationCode, "a@example.com")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestIssuer_Ensure_Idempotent(t *testing.T) {
	store := newMemStore()
	now := t0
	issuer := testIssuer(store, &recordingDispatcher{}, &now)
	ref := Ref{Entity: EntityOrder, ID: "o-1"}
	store.seed(ref)
	ctx := context.Background()

	plaintext, issued, err := issuer.Ensure(ctx, ref, KindAccessKey, "a@example.com")
	if err != nil || !issued || plaintext == "" {
		t.Fatalf("first Ensure = (%q, %v, %v)", plaintext, issued, err)
	}
	rec1, _ := store.Read(ctx, ref)

	plaintext, issued, err = issuer.Ensure(ctx, ref, KindAccessKey, "a@example.com")
	if err != nil || issued || plaintext != "" {
		t.Fatalf("second Ensure = (%q, %v, %v), want no-op", plaintext, issued, err)
	}
	rec2, _ := store.Read(ctx, ref)
	if rec1.Hash != rec2.Hash {
		t.Error("Ensure must not supersede an existing credential")
	}
}

func TestIssuer_ConcurrentIssue_ExactlyOneLive(t *testing.T) {
	store := newMemStore()
	issuer := NewIssuer(store, &seqGenerator{}, fakeHasher{}, nil, clock.System{}, 10*time.Minute, 0)
	ref := Ref{Entity: EntityOrder, ID: "o-1"}
	store.seed(ref)
	ctx := context.Background()

	const n = 8
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plaintext, err := issuer.Issue(ctx, ref, KindAccessKey, "a@example.com")
			if err == nil {
				results <- plaintext
			} else if !errors.Is(err, ErrConflict) {
				t.Errorf("Issue: %v", err)
			}
		}()
	}
	wg.Wait()
	close(results)

	rec, _ := store.Read(ctx, ref)
	live := 0
	total := 0
	for plaintext := range results {
		total++
		if (fakeHasher{}).Compare(rec.Hash, []byte(plaintext)) == nil {
			live++
		}
	}
	if total == 0 {
		t.Fatal("expected at least one successful issuance")
	}
	if live != 1 {
		t.Fatalf("live secrets = %d of %d issued, want exactly 1", live, total)
	}
}
