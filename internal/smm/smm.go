// Package smm exposes fans and temperatures reached through the BIOS
// system management mode interface of the vendor kernel driver.
package smm

import (
	"context"
	"strconv"
	"sync"

	"codeberg.org/mutker/hwctl/internal/config"
	"codeberg.org/mutker/hwctl/internal/driver"
	"codeberg.org/mutker/hwctl/internal/errors"
	"codeberg.org/mutker/hwctl/internal/hardware"
	"codeberg.org/mutker/hwctl/internal/logger"
	"codeberg.org/mutker/hwctl/internal/registry"
	"github.com/cenkalti/backoff/v4"
)

// SMM is the hardware behind the driver: every fan and temperature sensor
// that answered the probe.
type SMM struct {
	id     hardware.Identifier
	client *Client

	fanSpeeds    []*hardware.Reading
	fanLevels    []*hardware.Reading
	temperatures []*hardware.Reading
	temperatureN []int
	fans         []*fanControl

	manual bool
	mu     sync.Mutex
}

// New probes up to maxFans fans and temperatureSensors sensors. A fan is
// present when its level can be read.
func New(client *Client, maxFans, maxFanLevel, temperatureSensors int) *SMM {
	s := &SMM{
		id:     hardware.NewIdentifier("smm"),
		client: client,
	}

	for i := range maxFans {
		level, err := client.FanLevel(i)
		if err != nil {
			logger.Debug().Err(err).Int("fan", i).Msg("Fan did not answer probe")
			continue
		}

		n := strconv.Itoa(i + 1)
		s.fanSpeeds = append(s.fanSpeeds, hardware.NewReading(s.id.Append("fan", strconv.Itoa(i)), "Fan #"+n, i, hardware.SensorFan))
		s.fanLevels = append(s.fanLevels, hardware.NewReading(s.id.Append("level", strconv.Itoa(i)), "Fan #"+n, i, hardware.SensorLevel))
		s.fans = append(s.fans, &fanControl{
			id:       s.id.Append("control", "fan", strconv.Itoa(i)),
			client:   client,
			index:    i,
			maxLevel: maxFanLevel,
			level:    level,
			owner:    s,
		})
	}

	for i := range temperatureSensors {
		if _, err := client.Temperature(i); err != nil {
			logger.Debug().Err(err).Int("sensor", i).Msg("Temperature sensor did not answer probe")
			continue
		}
		s.temperatures = append(s.temperatures, hardware.NewReading(
			s.id.Append("temperature", strconv.Itoa(i)), "Temperature #"+strconv.Itoa(i+1), i, hardware.SensorTemperature))
		s.temperatureN = append(s.temperatureN, i)
	}

	logger.Debug().
		Int("fans", len(s.fans)).
		Int("temperatures", len(s.temperatures)).
		Msg("SMM probe complete")

	return s
}

func (s *SMM) Identifier() hardware.Identifier     { return s.id }
func (s *SMM) Name() string                        { return "SMM" }
func (s *SMM) HardwareType() hardware.HardwareType { return hardware.TypeMotherboard }

func (s *SMM) Sensors() []hardware.Sensor {
	var sensors []hardware.Sensor
	for _, r := range s.fanSpeeds {
		sensors = append(sensors, r)
	}
	for _, r := range s.fanLevels {
		sensors = append(sensors, r)
	}
	for _, r := range s.temperatures {
		sensors = append(sensors, r)
	}

	return sensors
}

func (s *SMM) Controls() []hardware.Control {
	controls := make([]hardware.Control, 0, len(s.fans))
	for _, fc := range s.fans {
		controls = append(controls, fc)
	}

	return controls
}

func (s *SMM) Update() {
	for i, fc := range s.fans {
		if rpm, err := s.client.FanSpeed(fc.index); err == nil {
			s.fanSpeeds[i].Set(float64(rpm))
		} else {
			s.fanSpeeds[i].Clear()
		}

		if level, err := s.client.FanLevel(fc.index); err == nil {
			s.fanLevels[i].Set(float64(level))
			fc.refresh(level)
		} else {
			s.fanLevels[i].Clear()
		}
	}

	for i, r := range s.temperatures {
		if temp, err := s.client.Temperature(s.temperatureN[i]); err == nil {
			r.Set(float64(temp))
		} else {
			r.Clear()
		}
	}
}

// Close hands the fans back to the BIOS if any was driven manually.
func (s *SMM) Close() error {
	return s.releaseManual()
}

func (s *SMM) takeManual() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.manual {
		return nil
	}
	if err := s.client.SetAutomatic(false); err != nil {
		return err
	}
	s.manual = true
	logger.Debug().Msg("BIOS fan control disabled")

	return nil
}

func (s *SMM) releaseManual() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.manual {
		return nil
	}
	if err := s.client.SetAutomatic(true); err != nil {
		return err
	}
	s.manual = false
	logger.Debug().Msg("BIOS fan control restored")

	return nil
}

// Ledger records the driver services this process installed.
type Ledger interface {
	Record(ctx context.Context, install registry.Install) error
	Remove(ctx context.Context, service string) error
}

type Option func(*Group)

// WithLedger records a freshly created service in l and removes it again on
// uninstall.
func WithLedger(l Ledger) Option {
	return func(g *Group) {
		g.ledger = l
	}
}

// WithBackOff replaces the schedule used while waiting for the device node.
func WithBackOff(b backoff.BackOff) Option {
	return func(g *Group) {
		g.backOff = b
	}
}

// Group owns the driver channel and the SMM hardware behind it.
type Group struct {
	*hardware.Collection
	cfg     config.DriverConfig
	ch      *driver.Channel
	created bool
	ledger  Ledger
	backOff backoff.BackOff
}

// NewGroup installs and starts the driver service, opens its device and
// probes the SMM hardware. Any failure leaves the group empty; the error is
// returned so the caller can report it.
func NewGroup(ctx context.Context, cfg config.DriverConfig, api driver.API, opts ...Option) (*Group, error) {
	g := &Group{
		Collection: hardware.NewCollection(),
		cfg:        cfg,
		backOff:    backoff.NewExponentialBackOff(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if !cfg.Enabled {
		return g, nil
	}

	svc, err := serviceConfig(cfg)
	if err != nil {
		return g, err
	}

	ch := driver.NewChannel(api, cfg.IOCTLCode)
	created, err := ch.EnsureInstalled(svc)
	if err != nil {
		return g, err
	}
	g.ch = ch
	g.created = created

	if created && g.ledger != nil {
		if err := g.ledger.Record(ctx, registry.Install{
			Service:     svc.Name,
			DisplayName: svc.DisplayName,
			BinaryPath:  svc.BinaryPath,
			DevicePath:  cfg.DevicePath,
		}); err != nil {
			logger.Warn().Err(err).Str("service", svc.Name).Msg("Failed to record driver install")
		}
	}

	if err := ch.Start(); err != nil {
		return g, g.abort(ctx, err)
	}

	if err := g.openDevice(ctx); err != nil {
		return g, g.abort(ctx, err)
	}

	s := New(NewClient(ch), cfg.MaxFans, cfg.MaxFanLevel, cfg.TemperatureSensors)
	g.Collection = hardware.NewCollection(s)

	return g, nil
}

// openDevice retries while the driver has not created its device node yet.
func (g *Group) openDevice(ctx context.Context) error {
	retries := g.cfg.OpenRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(g.backOff, uint64(retries)), ctx)

	return backoff.Retry(func() error {
		err := g.ch.OpenDevice(g.cfg.DevicePath, driver.GenericRead|driver.GenericWrite, driver.FileShareRead|driver.FileShareWrite)
		if err == nil {
			return nil
		}
		if !errors.HasCode(err, driver.ErrDeviceUnavailable) {
			return backoff.Permanent(err)
		}
		logger.Debug().Err(err).Str("device", g.cfg.DevicePath).Msg("Driver device not ready")
		return err
	}, b)
}

// abort releases the channel after a failed setup and returns cause joined
// with any release error.
func (g *Group) abort(ctx context.Context, cause error) error {
	err := g.release(ctx)
	g.ch = nil

	return errors.Join(cause, err)
}

// release closes the channel. Only a service this group created is
// stopped and deleted, and only when configured to uninstall on close.
func (g *Group) release(ctx context.Context) error {
	if !g.created || !g.cfg.UninstallOnClose {
		return g.ch.Close()
	}

	service := g.ch.ServiceName()
	if err := g.ch.Teardown(); err != nil {
		return err
	}
	if g.ledger != nil {
		if err := g.ledger.Remove(ctx, service); err != nil {
			logger.Warn().Err(err).Str("service", service).Msg("Failed to remove driver install record")
		}
	}

	return nil
}

// Close hands the fans back to the BIOS, then releases the driver.
func (g *Group) Close() error {
	err := g.Collection.Close()
	if g.ch == nil {
		return err
	}

	relErr := g.release(context.Background())
	g.ch = nil

	return errors.Join(err, relErr)
}

func serviceConfig(cfg config.DriverConfig) (driver.ServiceConfig, error) {
	errFactory := errors.New()

	start, err := driver.ParseStartType(cfg.StartType)
	if err != nil {
		return driver.ServiceConfig{}, errFactory.Wrap(ErrInvalidConfig, err)
	}
	ec, err := driver.ParseErrorControl(cfg.ErrorControl)
	if err != nil {
		return driver.ServiceConfig{}, errFactory.Wrap(ErrInvalidConfig, err)
	}

	return driver.ServiceConfig{
		Name:         cfg.ServiceName,
		DisplayName:  cfg.DisplayName,
		BinaryPath:   cfg.BinaryPath,
		StartType:    start,
		ErrorControl: ec,
	}, nil
}
