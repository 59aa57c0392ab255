// Package bios simulates the BIOS and DOS software interrupt services a
// teaching program expects: text video, console I/O, keyboard and clock.
//
// Services only mutate the machine state they are given. They never touch IP
// nor execute further instructions.
package bios

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/Manu343726/emu8086/pkg/hw/cpu/machine"
	"github.com/Manu343726/emu8086/pkg/utils"
)

// Interrupt vectors
const (
	VectorVideo     uint8 = 0x10
	VectorKeyboard  uint8 = 0x16
	VectorClock     uint8 = 0x1A
	VectorTerminate uint8 = 0x20
	VectorDOS       uint8 = 0x21
)

// Handler implements one interrupt service
type Handler func(s *Services, state *machine.State) error

// Service describes a single interrupt service
type Service struct {
	// Desc is the human-readable description of the service
	Desc string

	// Handler is invoked when the service is requested
	Handler Handler
}

// Vector groups the services reachable through one INT instruction. Vectors
// with a Handler ignore AH; otherwise AH selects one of Functions.
type Vector struct {
	Desc      string
	Handler   Handler
	Functions map[uint8]Service
}

// Options configures a Services table
type Options struct {
	Logger *slog.Logger
	Clock  Clock
}

// Option modifies Options
type Option func(*Options)

// WithLogger sets the logger used to report unsupported and traced services
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithClock overrides the host clock
func WithClock(clock Clock) Option {
	return func(o *Options) {
		o.Clock = clock
	}
}

// Services is the interrupt table. It keeps the progress of an interrupted
// buffered line input between invocations.
type Services struct {
	vectors map[uint8]Vector
	clock   Clock
	logger  *slog.Logger
	line    *lineInput
}

// New creates the standard table of video, DOS, keyboard and clock services
func New(opts ...Option) *Services {
	options := Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:  SystemClock{},
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Services{
		vectors: map[uint8]Vector{
			VectorVideo:    {Desc: "BIOS video", Functions: videoServices()},
			VectorKeyboard: {Desc: "BIOS keyboard", Functions: keyboardServices()},
			VectorClock:    {Desc: "BIOS clock", Functions: clockServices()},
			VectorDOS:      {Desc: "DOS services", Functions: dosServices()},
			VectorTerminate: {
				Desc:    "DOS terminate program",
				Handler: terminate,
			},
		},
		clock:  options.Clock,
		logger: options.Logger,
	}
}

// Clock returns the host clock used by date and time services
func (s *Services) Clock() Clock {
	return s.clock
}

// Reset forgets any partially read input line
func (s *Services) Reset() {
	s.line = nil
}

// Lookup returns the service that would run for vector with the given AH
func (s *Services) Lookup(vector, function uint8) (Service, bool) {
	v, ok := s.vectors[vector]
	if !ok {
		return Service{}, false
	}
	if v.Handler != nil {
		return Service{Desc: v.Desc, Handler: v.Handler}, true
	}
	service, ok := v.Functions[function]
	return service, ok
}

// Invoke runs the service selected by vector and AH. Unsupported vectors and
// functions are logged and ignored. Blocking input services return
// machine.ErrInputRequired when the key queue is empty.
func (s *Services) Invoke(state *machine.State, vector uint8) error {
	function := utils.High(state.Registers.AX)

	service, ok := s.Lookup(vector, function)
	if !ok {
		s.logger.Warn("unsupported interrupt service ignored",
			slog.String("vector", hex8(vector)),
			slog.String("function", hex8(function)))
		return nil
	}

	s.logger.Debug("interrupt",
		slog.String("vector", hex8(vector)),
		slog.String("function", hex8(function)),
		slog.String("service", service.Desc))
	return service.Handler(s, state)
}

// Entry is a row of the service reference
type Entry struct {
	Vector   uint8
	Function uint8
	// Any is set for vectors that ignore AH
	Any  bool
	Desc string
}

// Reference lists every supported service sorted by vector and function
func (s *Services) Reference() []Entry {
	var entries []Entry
	for number, v := range s.vectors {
		if v.Handler != nil {
			entries = append(entries, Entry{Vector: number, Any: true, Desc: v.Desc})
			continue
		}
		for function, service := range v.Functions {
			entries = append(entries, Entry{Vector: number, Function: function, Desc: service.Desc})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Vector != entries[j].Vector {
			return entries[i].Vector < entries[j].Vector
		}
		return entries[i].Function < entries[j].Function
	})
	return entries
}

func hex8(v uint8) string {
	return fmt.Sprintf("%02XH", v)
}

func terminate(s *Services, state *machine.State) error {
	state.Terminated = true
	state.ExitCode = 0
	return nil
}

func setAH(state *machine.State, value uint8) {
	state.Registers.AX = utils.Word(value, utils.Low(state.Registers.AX))
}

func setAL(state *machine.State, value uint8) {
	state.Registers.AX = utils.Word(utils.High(state.Registers.AX), value)
}
