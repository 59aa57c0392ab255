package bios

import "github.com/Manu343726/emu8086/pkg/hw/cpu/machine"

func keyboardServices() map[uint8]Service {
	return map[uint8]Service{
		0x00: {Desc: "Read key (blocking)", Handler: readKey},
		0x01: {Desc: "Check for key", Handler: peekKey},
		0x10: {Desc: "Read extended key (blocking)", Handler: readKey},
		0x11: {Desc: "Check for extended key", Handler: peekKey},
	}
}

// AH=00: AH = scan code, AL = ASCII
func readKey(s *Services, state *machine.State) error {
	key, ok := state.Keys.Pop()
	if !ok {
		return machine.ErrInputRequired
	}
	state.Registers.AX = key.Word()
	return nil
}

// AH=01: ZF clear and AX = key when one is queued, ZF set otherwise. The key
// stays in the queue.
func peekKey(s *Services, state *machine.State) error {
	key, ok := state.Keys.Peek()
	state.Flags.ZF = !ok
	if ok {
		state.Registers.AX = key.Word()
	}
	return nil
}
