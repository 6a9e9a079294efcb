// Package resilience guards calls to the remote text generator with a
// cooldown breaker, exponential backoff and credential rotation.
package resilience

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ashureev/lunchbot/internal/metrics"
)

// Default cooldown schedule.
const (
	DefaultBackoffFloor = 30 * time.Second
	DefaultBackoffMax   = 10 * time.Minute
)

// ThrottleAction says how the controller reacted to a quota error.
type ThrottleAction int

const (
	// ActionRotated means another credential was activated.
	ActionRotated ThrottleAction = iota
	// ActionCooldown means all remote calls are suspended for a while.
	ActionCooldown
)

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	InCooldown       bool          `json:"in_cooldown"`
	CooldownUntil    time.Time     `json:"cooldown_until,omitempty"`
	LastCooldown     time.Duration `json:"last_cooldown"`
	ActiveCredential int           `json:"active_credential"`
	Credentials      int           `json:"credentials"`
}

// Controller is the process-wide breaker for the remote generator. It is
// CLOSED unless cooldownUntil lies in the future.
type Controller struct {
	// cooldownUntil holds UnixNano; read without the lock.
	cooldownUntil atomic.Int64

	mu           sync.Mutex
	backoff      *backoff.ExponentialBackOff
	lastCooldown time.Duration
	credentials  int
	active       int
	rotations    int // rotations since the last success or cooldown
	logger       *slog.Logger
	now          func() time.Time
}

// NewController creates a controller for a pool of credentials.
func NewController(credentials int, floor, max time.Duration, logger *slog.Logger) *Controller {
	if floor <= 0 {
		floor = DefaultBackoffFloor
	}
	if max < floor {
		max = floor
	}
	if credentials < 1 {
		credentials = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = floor
	b.MaxInterval = max
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	metrics.ActiveCredential.Set(0)
	metrics.BreakerCooldown.Set(0)

	return &Controller{
		backoff:     b,
		credentials: credentials,
		logger:      logger,
		now:         time.Now,
	}
}

// InCooldown reports whether remote calls are currently suspended.
func (c *Controller) InCooldown() bool {
	return c.now().UnixNano() < c.cooldownUntil.Load()
}

// ActiveCredential returns the index of the credential to use.
func (c *Controller) ActiveCredential() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// ReportThrottled handles a quota error. It rotates to the next credential
// while untried ones remain; otherwise it starts a cooldown of the current
// backoff and doubles the backoff for next time.
func (c *Controller) ReportThrottled() ThrottleAction {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.credentials > 1 && c.rotations < c.credentials-1 {
		c.active = (c.active + 1) % c.credentials
		c.rotations++
		metrics.CredentialRotations.Inc()
		metrics.ActiveCredential.Set(float64(c.active))
		c.logger.Warn("Remote quota exhausted, rotating credential",
			"active_credential", c.active,
			"credentials", c.credentials)
		return ActionRotated
	}

	d := c.backoff.NextBackOff()
	until := c.now().Add(d)
	c.cooldownUntil.Store(until.UnixNano())
	c.lastCooldown = d
	c.rotations = 0

	metrics.BreakerCooldown.Set(1)
	metrics.BreakerCooldownSeconds.Set(d.Seconds())
	c.logger.Warn("Remote quota exhausted, entering cooldown",
		"cooldown", d,
		"until", until)
	return ActionCooldown
}

// ReportSuccess resets the backoff to its floor.
func (c *Controller) ReportSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastCooldown != 0 || c.rotations != 0 {
		c.logger.Info("Remote generator recovered", "active_credential", c.active)
	}
	c.backoff.Reset()
	c.lastCooldown = 0
	c.rotations = 0
	metrics.BreakerCooldown.Set(0)
}

// Snapshot returns the current breaker state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		InCooldown:       c.InCooldown(),
		LastCooldown:     c.lastCooldown,
		ActiveCredential: c.active,
		Credentials:      c.credentials,
	}
	if s.InCooldown {
		s.CooldownUntil = time.Unix(0, c.cooldownUntil.Load())
	}
	return s
}
