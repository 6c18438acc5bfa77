package domain

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the order lifecycle status shown in the admin dashboard.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusDelivered  Status = "delivered"
	StatusClosed     Status = "closed"
)

// Valid reports whether s is one of the known lifecycle statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusDelivered, StatusClosed:
		return true
	}
	return false
}

// Order is a service request whose tracking view is gated by an access key.
// The public code is stable and guessable by design; the access key is the
// secret, stored only as (hash, issuedAt, lastSentAt).
type Order struct {
	ID  string
	Seq int64

	ClientName    string
	ClientEmail   string
	Phone         string
	ProjectTitle  string
	ProjectType   string
	PagesRequired int
	Budget        string
	Details       string
	Status        Status

	// Current access-key credential. The key never expires by time; writing a
	// new hash supersedes the old one immediately. All three fields are
	// replaced together on every regeneration.
	AccessKeyHash     string
	AccessKeyIssuedAt *time.Time
	KeyLastSentAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicCode returns the order's public tracking identifier, e.g.
// "000001-8664FD": the zero-padded sequence plus a 6-hex checksum of
// (seq, client email). The code is not a secret — it only names the order.
func (o *Order) PublicCode() string {
	sum := md5.Sum([]byte(fmt.Sprintf("%d-%s", o.Seq, o.ClientEmail)))
	return fmt.Sprintf("%06d-%s", o.Seq, strings.ToUpper(hex.EncodeToString(sum[:]))[:6])
}

// ErrBadCode is returned for a public code that is not in the expected format.
var ErrBadCode = errors.New("malformed order code")

// ParsePublicCode extracts the order sequence from a public code. The checksum
// part is verified against the loaded order via PublicCode, not here.
func ParsePublicCode(code string) (int64, error) {
	seqPart, _, ok := strings.Cut(code, "-")
	if !ok {
		return 0, ErrBadCode
	}
	seq, err := strconv.ParseInt(seqPart, 10, 64)
	if err != nil || seq <= 0 {
		return 0, ErrBadCode
	}
	return seq, nil
}

// Validate validates the order for persistence.
func (o *Order) Validate() error {
	if o.ClientName == "" {
		return errors.New("client name is required")
	}
	if o.ClientEmail == "" {
		return errors.New("client email is required")
	}
	if o.ProjectTitle == "" {
		return errors.New("project title is required")
	}
	if o.Status == "" {
		o.Status = StatusNew
	}
	return nil
}
