// Package admin implements the numeric passcode gate in front of the article
// editor and provider settings.
//
// This is a UI convenience gate, not a security boundary: the stored value is
// a 32-bit non-cryptographic string hash and everything lives on the local
// device. Anyone with access to the data directory can reset it.
package admin

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"digibox/internal/logging"
	"digibox/internal/store"
)

const (
	// CodeLength is the number of digits in a passcode.
	CodeLength = 8
	// DefaultCode seeds the stored hash on first run.
	DefaultCode = "11451419"
	// KeyHash is the store key holding the passcode hash.
	KeyHash = "digibox_admin_hash"
	// KeyDelete removes the last entered digit.
	KeyDelete = "DEL"
)

var (
	ErrNotAuthenticated = errors.New("admin: not authenticated")
	ErrInvalidCode      = errors.New("admin: passcode must be exactly 8 digits")
)

// Hash is the 32-bit string hash h = h*31 + c over the code's characters,
// wrapping like a signed 32-bit integer, rendered in decimal.
func Hash(code string) string {
	var h int32
	for _, c := range code {
		h = h*31 + int32(c)
	}
	return strconv.FormatInt(int64(h), 10)
}

// Result is the outcome of a key press.
type Result int

const (
	Ignored  Result = iota // input not accepted in the current state
	Pending                // buffer changed, not yet full
	Accepted               // full code matched; authenticate after Feedback.After
	Rejected               // full code mismatched; shake, then clear after Feedback.After
)

func (r Result) String() string {
	return [...]string{"ignored", "pending", "accepted", "rejected"}[r]
}

// Feedback tells the caller whether a delayed Settle is due.
type Feedback struct {
	Result Result
	After  time.Duration
	gen    uint64
}

// NeedsSettle reports whether Settle must be called after f.After.
func (f Feedback) NeedsSettle() bool {
	return f.Result == Accepted || f.Result == Rejected
}

// Gate holds the entry buffer and the session-local authentication flag.
type Gate struct {
	mu sync.Mutex
	kv *store.KV

	hash          string
	buffer        []byte
	authenticated bool
	shaking       bool
	verdict       bool // a full code is awaiting Settle
	gen           uint64

	AcceptDelay time.Duration
	ShakeDelay  time.Duration
}

// NewGate loads the stored hash, seeding it from DefaultCode on first run.
func NewGate(kv *store.KV) *Gate {
	hash := store.LoadString(kv, KeyHash, "")
	if hash == "" {
		hash = Hash(DefaultCode)
		_ = store.SaveString(kv, KeyHash, hash)
		logging.Admin("Seeded admin passcode hash")
	}
	return &Gate{
		kv:          kv,
		hash:        hash,
		AcceptDelay: 300 * time.Millisecond,
		ShakeDelay:  500 * time.Millisecond,
	}
}

// Press feeds one key: a digit "0".."9" or KeyDelete. The keypad and the
// physical keyboard both route through here.
func (g *Gate) Press(key string) Feedback {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.authenticated || g.verdict {
		return Feedback{Result: Ignored}
	}

	if key == KeyDelete {
		if len(g.buffer) == 0 {
			return Feedback{Result: Ignored}
		}
		g.buffer = g.buffer[:len(g.buffer)-1]
		return Feedback{Result: Pending}
	}

	if len(key) != 1 || key[0] < '0' || key[0] > '9' || len(g.buffer) >= CodeLength {
		return Feedback{Result: Ignored}
	}
	g.buffer = append(g.buffer, key[0])
	if len(g.buffer) < CodeLength {
		return Feedback{Result: Pending}
	}

	g.verdict = true
	if Hash(string(g.buffer)) == g.hash {
		logging.Admin("Passcode accepted")
		logging.Audit(logging.CategoryAdmin).AdminAttempt(true)
		return Feedback{Result: Accepted, After: g.AcceptDelay, gen: g.gen}
	}
	logging.Admin("Passcode rejected")
	logging.Audit(logging.CategoryAdmin).AdminAttempt(false)
	g.shaking = true
	return Feedback{Result: Rejected, After: g.ShakeDelay, gen: g.gen}
}

// Settle applies the delayed effect of an Accepted or Rejected press.
// Feedback issued before the last Reset is ignored.
func (g *Gate) Settle(f Feedback) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !f.NeedsSettle() || f.gen != g.gen || !g.verdict {
		return
	}
	g.verdict = false
	switch f.Result {
	case Accepted:
		g.authenticated = true
	case Rejected:
		g.shaking = false
		g.buffer = g.buffer[:0]
	}
}

// Reset clears the buffer, any pending verdict and the authentication.
// Called whenever the admin page is left.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.gen++
	g.buffer = g.buffer[:0]
	g.shaking = false
	g.verdict = false
	if g.authenticated {
		logging.AdminDebug("Admin session ended")
		logging.Audit(logging.CategoryAdmin).AdminLock()
	}
	g.authenticated = false
}

// Authenticated reports whether the session is unlocked.
func (g *Gate) Authenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authenticated
}

// Entered returns how many digits are in the buffer.
func (g *Gate) Entered() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buffer)
}

// Shaking reports whether mismatch feedback is showing.
func (g *Gate) Shaking() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shaking
}

// ChangeCode replaces the passcode. Only the hash is persisted.
func (g *Gate) ChangeCode(code string) error {
	if !validCode(code) {
		return ErrInvalidCode
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.authenticated {
		return ErrNotAuthenticated
	}
	g.hash = Hash(code)
	if err := store.SaveString(g.kv, KeyHash, g.hash); err != nil {
		logging.Get(logging.CategoryAdmin).Warn("Passcode changed for this session only: %v", err)
	}
	logging.Admin("Passcode changed")
	logging.Audit(logging.CategoryAdmin).PasscodeSet(true, "")
	return nil
}

func validCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
