package hardware

import (
	"strings"

	"codeberg.org/mutker/hwctl/internal/errors"
)

// Computer is the process-wide inventory. Groups are added once at startup
// and closed once at shutdown.
type Computer struct {
	groups []Group
}

func NewComputer(groups ...Group) *Computer {
	return &Computer{groups: groups}
}

// Add appends g to the inventory.
func (c *Computer) Add(g Group) {
	c.groups = append(c.groups, g)
}

func (c *Computer) Groups() []Group {
	return c.groups
}

// Hardware returns the hardware of every group in inventory order.
func (c *Computer) Hardware() []Hardware {
	var all []Hardware
	for _, g := range c.groups {
		all = append(all, g.Hardware()...)
	}

	return all
}

// Update refreshes every hardware instance.
func (c *Computer) Update() {
	for _, hw := range c.Hardware() {
		hw.Update()
	}
}

// Report concatenates the reports of all groups that have one.
func (c *Computer) Report() string {
	var b strings.Builder
	for _, g := range c.groups {
		if r, ok := g.Report(); ok {
			b.WriteString(r)
			if !strings.HasSuffix(r, "\n") {
				b.WriteByte('\n')
			}
		}
	}

	return b.String()
}

// Close closes every group, continuing past failures.
func (c *Computer) Close() error {
	var errs []error
	for _, g := range c.groups {
		errs = append(errs, g.Close())
	}
	c.groups = nil

	return errors.Join(errs...)
}
