package display

import (
	"expvar"
	"log"
	"sync"

	"github.com/zull0910/tunos/internal/protocol"
)

var framesDropped = expvar.NewInt("display_frames_dropped_total")

// Screen holds the board of one display context. Frames arrive on a
// reader goroutine while the renderer reads snapshots, so access is
// serialized here.
type Screen struct {
	mu       sync.Mutex
	board    Board
	onChange func(Board)
}

func NewScreen(onChange func(Board)) *Screen {
	return &Screen{onChange: onChange}
}

func (s *Screen) Board() Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board
}

func (s *Screen) Apply(msg protocol.Message) Board {
	s.mu.Lock()
	s.board = Reduce(s.board, msg)
	board := s.board
	s.mu.Unlock()
	if s.onChange != nil && msg.Known() {
		s.onChange(board)
	}
	return board
}

// ApplyFrame decodes a raw channel frame and applies it. Malformed frames
// are dropped and leave the board unchanged.
func (s *Screen) ApplyFrame(raw []byte) Board {
	msg, err := protocol.Decode(raw)
	if err != nil {
		framesDropped.Add(1)
		log.Printf("display drop frame: %v", err)
		return s.Board()
	}
	return s.Apply(msg)
}
