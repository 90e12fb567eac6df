package display

import "testing"

func TestScreenApplyFrame(t *testing.T) {
	var changes int
	s := NewScreen(func(Board) { changes++ })

	frames := []string{
		`{"type":"call","data":{"id":5,"patientName":"Maria Lopez","room":"3"}}`,
		`not json`,
		`{"type":"cancel"}`,
		`{"type":"announce","data":"hello"}`,
	}
	for _, frame := range frames {
		s.ApplyFrame([]byte(frame))
	}
	board := s.Board()
	ticket, ok := board.Get(5)
	if !ok || ticket.PatientName != "Maria Lopez" || ticket.Room != "3" || board.Len() != 1 {
		t.Fatalf("unexpected board: %+v", board.Tickets())
	}
	if changes != 1 {
		t.Fatalf("expected one change notification, got %d", changes)
	}

	s.ApplyFrame([]byte(`{"type":"complete","data":5}`))
	if s.Board().Len() != 0 {
		t.Fatalf("expected empty board after complete")
	}
}
