package bios

import (
	"log/slog"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/Manu343726/emu8086/pkg/utils"
)

// MaxStringScan bounds the search for the '$' terminator of AH=09 strings
const MaxStringScan = 4096

func dosServices() map[uint8]Service {
	return map[uint8]Service{
		0x00: {Desc: "Terminate program", Handler: terminate},
		0x01: {Desc: "Read character with echo (blocking)", Handler: readChar(true)},
		0x02: {Desc: "Write character", Handler: writeChar},
		0x06: {Desc: "Direct console I/O", Handler: directConsole},
		0x07: {Desc: "Read character without echo (blocking)", Handler: readChar(false)},
		0x08: {Desc: "Read character without echo (blocking)", Handler: readChar(false)},
		0x09: {Desc: "Write '$' terminated string", Handler: writeDollarString},
		0x0A: {Desc: "Buffered line input (blocking)", Handler: readLine},
		0x2A: {Desc: "Get system date", Handler: getDate},
		0x2C: {Desc: "Get system time", Handler: getTime},
		0x4C: {Desc: "Terminate with return code", Handler: exit},
	}
}

// echo writes a typed key to the console. Backspace erases the previous
// character and carriage return starts a new line.
func echo(screen *machine.Screen, char uint8) {
	switch char {
	case machine.KeyBackspace:
		screen.Teletype('\b', machine.DefaultAttribute)
		screen.Teletype(' ', machine.DefaultAttribute)
		screen.Teletype('\b', machine.DefaultAttribute)
	case machine.KeyEnter:
		screen.Teletype('\r', machine.DefaultAttribute)
		screen.Teletype('\n', machine.DefaultAttribute)
	default:
		screen.Teletype(char, machine.DefaultAttribute)
	}
}

// AH=01/07/08: AL = character read
func readChar(withEcho bool) Handler {
	return func(s *Services, state *machine.State) error {
		key, ok := state.Keys.Pop()
		if !ok {
			return machine.ErrInputRequired
		}
		setAL(state, key.ASCII)
		if withEcho {
			echo(state.Screen, key.ASCII)
		}
		return nil
	}
}

// AH=02: DL = character
func writeChar(s *Services, state *machine.State) error {
	char := utils.Low(state.Registers.DX)
	state.Screen.Teletype(char, machine.DefaultAttribute)
	setAL(state, char)
	return nil
}

// AH=06: DL = FFh reads a key without waiting (ZF set when none), any
// other DL is written to the console
func directConsole(s *Services, state *machine.State) error {
	char := utils.Low(state.Registers.DX)
	if char != 0xFF {
		return writeChar(s, state)
	}

	key, ok := state.Keys.Pop()
	state.Flags.ZF = !ok
	if ok {
		setAL(state, key.ASCII)
	} else {
		setAL(state, 0)
	}
	return nil
}

// AH=09: DS:DX = '$' terminated string
func writeDollarString(s *Services, state *machine.State) error {
	start := machine.Physical(state.Registers.DS, state.Registers.DX)
	for i := uint32(0); i < MaxStringScan; i++ {
		char, err := state.Memory.Read8(start + i)
		if err != nil {
			return err
		}
		if char == '$' {
			setAL(state, '$')
			return nil
		}
		state.Screen.Teletype(char, machine.DefaultAttribute)
	}

	s.logger.Warn("string is not '$' terminated, output truncated",
		slog.Int("address", int(start)),
		slog.Int("limit", MaxStringScan))
	return nil
}

// lineInput is the progress of an AH=0A read suspended waiting for keys
type lineInput struct {
	buffer uint32
	count  int
}

// AH=0A: DS:DX = buffer. Byte 0 holds the capacity including the final CR,
// byte 1 receives the number of characters read (CR excluded) and the
// characters follow.
func readLine(s *Services, state *machine.State) error {
	buffer := machine.Physical(state.Registers.DS, state.Registers.DX)
	capacity, err := state.Memory.Read8(buffer)
	if err != nil {
		return err
	}

	if s.line == nil || s.line.buffer != buffer {
		s.line = &lineInput{buffer: buffer}
	}
	line := s.line

	for {
		key, ok := state.Keys.Pop()
		if !ok {
			return machine.ErrInputRequired
		}

		switch key.ASCII {
		case machine.KeyEnter:
			s.line = nil
			if err := state.Memory.Write8(buffer+2+uint32(line.count), machine.KeyEnter); err != nil {
				return err
			}
			if err := state.Memory.Write8(buffer+1, uint8(line.count)); err != nil {
				return err
			}
			state.Screen.Teletype('\r', machine.DefaultAttribute)
			return nil
		case machine.KeyBackspace:
			if line.count > 0 {
				line.count--
				echo(state.Screen, machine.KeyBackspace)
			}
		default:
			if line.count+1 >= int(capacity) {
				continue
			}
			if err := state.Memory.Write8(buffer+2+uint32(line.count), key.ASCII); err != nil {
				return err
			}
			line.count++
			echo(state.Screen, key.ASCII)
		}
	}
}

// AH=2A: CX = year, DH = month, DL = day, AL = day of week
func getDate(s *Services, state *machine.State) error {
	now := s.clock.Now()
	state.Registers.CX = uint16(now.Year())
	state.Registers.DX = utils.Word(uint8(now.Month()), uint8(now.Day()))
	setAL(state, uint8(now.Weekday()))
	return nil
}

// AH=2C: CH = hour, CL = minutes, DH = seconds, DL = hundredths
func getTime(s *Services, state *machine.State) error {
	now := s.clock.Now()
	state.Registers.CX = utils.Word(uint8(now.Hour()), uint8(now.Minute()))
	state.Registers.DX = utils.Word(uint8(now.Second()), uint8(now.Nanosecond()/10_000_000))
	return nil
}

// AH=4C: AL = exit code
func exit(s *Services, state *machine.State) error {
	state.Terminated = true
	state.ExitCode = utils.Low(state.Registers.AX)
	return nil
}
