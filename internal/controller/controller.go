package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/daikin-climate/internal/climate"
)

var ErrUnknownDevice = errors.New("unknown device")

// Notifier sends a human-facing alert.
type Notifier interface {
	Send(title, message string) error
}

// ChangeFunc runs after a successful poll or command, with the device lock held.
// It must not call WithDevice.
type ChangeFunc func(d *Device)

// AvailabilityFunc runs when a device flips between available and unavailable,
// with the device lock held.
type AvailabilityFunc func(d *Device, available bool)

// Options configures a Controller. PollTimeout bounds one poll of one device and
// defaults to PollInterval.
type Options struct {
	PollInterval     time.Duration
	PollTimeout      time.Duration
	UnavailableAfter int
	Notifier         Notifier
}

// Controller stands in for the home automation host: it owns the units, polls
// them on a schedule and serialises access to each one.
type Controller struct {
	devices []*Device
	byID    map[string]*Device

	pollInterval     time.Duration
	pollTimeout      time.Duration
	unavailableAfter int
	notifier         Notifier

	onChange       []ChangeFunc
	onAvailability []AvailabilityFunc
}

func New(opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = opts.PollInterval
	}
	if opts.UnavailableAfter <= 0 {
		opts.UnavailableAfter = 3
	}
	return &Controller{
		byID:             make(map[string]*Device),
		pollInterval:     opts.PollInterval,
		pollTimeout:      opts.PollTimeout,
		unavailableAfter: opts.UnavailableAfter,
		notifier:         opts.Notifier,
	}
}

func (c *Controller) Add(d *Device) error {
	if _, exists := c.byID[d.ID]; exists {
		return fmt.Errorf("device %q already registered", d.ID)
	}
	c.devices = append(c.devices, d)
	c.byID[d.ID] = d

	// commands run under the device lock, so the listener can fire directly
	d.Climate.AddListener(func(*climate.Climate) {
		c.fireChange(d)
	})
	return nil
}

func (c *Controller) Devices() []*Device {
	out := make([]*Device, len(c.devices))
	copy(out, c.devices)
	return out
}

func (c *Controller) OnChange(fn ChangeFunc) {
	c.onChange = append(c.onChange, fn)
}

func (c *Controller) OnAvailability(fn AvailabilityFunc) {
	c.onAvailability = append(c.onAvailability, fn)
}

// WithDevice runs fn while holding the device's lock.
func (c *Controller) WithDevice(id string, fn func(d *Device) error) error {
	d, ok := c.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d)
}

// Run polls every device until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	log.Info().
		Int("devices", len(c.devices)).
		Dur("interval", c.pollInterval).
		Msg("Starting poll loop")

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Poll loop stopped")
			return
		case <-ticker.C:
			c.PollOnce(ctx)
		}
	}
}

// PollOnce updates every device once, sequentially.
func (c *Controller) PollOnce(ctx context.Context) {
	for _, d := range c.devices {
		c.poll(ctx, d)
	}
}

func (c *Controller) poll(ctx context.Context, d *Device) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	err := d.update(ctx)
	c.record(d, err)
	if err == nil {
		c.fireChange(d)
	}
}

func (c *Controller) record(d *Device, err error) {
	if err == nil {
		d.failures = 0
		d.lastErr = nil
		if !d.available.Load() {
			d.available.Store(true)
			log.Info().Str("device", d.ID).Msg("Unit is available again")
			c.notify(fmt.Sprintf("%s is back online", d.Climate.Name()), "The unit is responding again.")
			c.fireAvailability(d, true)
		}
		return
	}

	d.failures++
	d.lastErr = err
	log.Warn().Err(err).Str("device", d.ID).Int("failures", d.failures).Msg("Poll failed")

	if d.failures >= c.unavailableAfter && d.available.Load() {
		d.available.Store(false)
		log.Error().Err(err).Str("device", d.ID).Msg("Marking unit unavailable")
		c.notify(fmt.Sprintf("%s is unavailable", d.Climate.Name()),
			fmt.Sprintf("%d consecutive polls failed: %v", d.failures, err))
		c.fireAvailability(d, false)
	}
}

func (c *Controller) notify(title, message string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Send(title, message); err != nil {
		log.Warn().Err(err).Str("title", title).Msg("Failed to send notification")
	}
}

func (c *Controller) fireChange(d *Device) {
	for _, fn := range c.onChange {
		fn(d)
	}
}

func (c *Controller) fireAvailability(d *Device, available bool) {
	for _, fn := range c.onAvailability {
		fn(d, available)
	}
}
