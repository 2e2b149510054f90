package usbhost

import "testing"

func TestTicketKinds(t *testing.T) {
	mt := MessageTicket(3)
	if !mt.IsMessagePipe() || mt.Index != 3 {
		t.Fatalf("MessageTicket(3) = %+v, want message pipe index 3", mt)
	}

	st := StreamTicket(5)
	if st.IsMessagePipe() || st.Index != 5 {
		t.Fatalf("StreamTicket(5) = %+v, want streaming pipe index 5", st)
	}

	if mt == st {
		t.Fatalf("distinct tickets compared equal: %+v == %+v", mt, st)
	}
}
