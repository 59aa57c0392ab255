package bios

import (
	"time"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/Manu343726/emu8086/pkg/utils"
)

// TicksPerSecond is the rate of the PC timer tick (1193180 / 65536 Hz)
const TicksPerSecond = 1193180.0 / 65536.0

// Clock provides the host wall-clock time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host local time
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always reports the same instant
type FixedClock time.Time

func (c FixedClock) Now() time.Time {
	return time.Time(c)
}

// TicksSinceMidnight converts a time of day to timer ticks
func TicksSinceMidnight(t time.Time) uint32 {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return uint32(t.Sub(midnight).Seconds() * TicksPerSecond)
}

// BCD packs a value in 0..99 as two binary coded decimal digits
func BCD(v int) uint8 {
	v %= 100
	return uint8(v/10)<<4 | uint8(v%10)
}

func clockServices() map[uint8]Service {
	return map[uint8]Service{
		0x00: {Desc: "Get system time (ticks since midnight)", Handler: clockTicks},
		0x02: {Desc: "Get real-time clock time (BCD)", Handler: clockTime},
		0x04: {Desc: "Get real-time clock date (BCD)", Handler: clockDate},
	}
}

// AH=00: CX:DX = ticks since midnight, AL = midnight rollover flag
func clockTicks(s *Services, state *machine.State) error {
	ticks := TicksSinceMidnight(s.clock.Now())
	state.Registers.CX = uint16(ticks >> 16)
	state.Registers.DX = uint16(ticks)
	setAL(state, 0)
	return nil
}

// AH=02: CH = hours, CL = minutes, DH = seconds, DL = 0
func clockTime(s *Services, state *machine.State) error {
	now := s.clock.Now()
	state.Registers.CX = utils.Word(BCD(now.Hour()), BCD(now.Minute()))
	state.Registers.DX = utils.Word(BCD(now.Second()), 0)
	state.Flags.CF = false
	return nil
}

// AH=04: CH = century, CL = year, DH = month, DL = day
func clockDate(s *Services, state *machine.State) error {
	now := s.clock.Now()
	state.Registers.CX = utils.Word(BCD(now.Year()/100), BCD(now.Year()))
	state.Registers.DX = utils.Word(BCD(int(now.Month())), BCD(now.Day()))
	state.Flags.CF = false
	return nil
}
