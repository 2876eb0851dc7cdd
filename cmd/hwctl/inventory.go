package main

import (
	"fmt"
	"io"
	"strconv"

	"codeberg.org/mutker/hwctl/internal/hardware"
	"codeberg.org/mutker/hwctl/internal/logger"
)

func formatValue(v float64, ok bool, unit string) string {
	if !ok {
		return "-"
	}
	s := strconv.FormatFloat(v, 'f', 1, 64)
	if unit != "" {
		s += " " + unit
	}

	return s
}

func printInventory(w io.Writer, computer *hardware.Computer) {
	for _, hw := range computer.Hardware() {
		fmt.Fprintf(w, "%s [%s] %s\n", hw.Name(), hw.HardwareType(), hw.Identifier())
		for _, s := range hw.Sensors() {
			v, ok := s.Value()
			fmt.Fprintf(w, "  %-24s %-12s %s\n", s.Name(), s.SensorType(), formatValue(v, ok, s.SensorType().Unit()))
		}
		for _, c := range hw.Controls() {
			fmt.Fprintf(w, "  %-24s %-12s %s (%s..%s)\n", c.Name(), c.ControlType(),
				formatValue(c.Value(), true, c.UnitType().String()),
				strconv.FormatFloat(c.MinValue(), 'f', -1, 64),
				strconv.FormatFloat(c.MaxValue(), 'f', -1, 64))
		}
	}

	if report := computer.Report(); report != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, report)
	}
}

func logReadings(computer *hardware.Computer) {
	for _, hw := range computer.Hardware() {
		event := logger.Debug().Str("hardware", hw.Identifier().String())
		for _, s := range hw.Sensors() {
			if v, ok := s.Value(); ok {
				event = event.Float64(s.Identifier().String(), v)
			}
		}
		event.Msg("")
	}
}
