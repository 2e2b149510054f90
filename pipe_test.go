package usbhost

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// stubHCI is the minimal usbhost.HCI needed to exercise the pipe pool in
// isolation, without pulling in hci/fakehci (which imports this package
// and would create an import cycle from an internal test).
type stubHCI struct {
	nextHandle uint8
}

func (s *stubHCI) Init() error   { return nil }
func (s *stubHCI) Deinit() error { return nil }
func (s *stubHCI) IsConnected() bool { return false }
func (s *stubHCI) Speed() Speed      { return SpeedFull }
func (s *stubHCI) ResetStart()       {}
func (s *stubHCI) ResetStop() (Status, error) { return StatusOK, nil }
func (s *stubHCI) PipeAlloc(t TransferType) (uint8, error) {
	h := s.nextHandle
	s.nextHandle++
	return h, nil
}
func (s *stubHCI) PipeDealloc(handle uint8) error                      { return nil }
func (s *stubHCI) PipeConfigure(dev *Device, p *Pipe) error             { return nil }
func (s *stubHCI) MsgPipeConfigure(dev *Device, p *MessagePipe) error   { return nil }
func (s *stubHCI) CtrlXferStart(dev *Device, p *MessagePipe) error      { return nil }
func (s *stubHCI) CtrlXferCancel(dev *Device, p *MessagePipe)           {}
func (s *stubHCI) CtrlXferStatus(dev *Device, p *MessagePipe) (Status, error) {
	return StatusXferDone, nil
}
func (s *stubHCI) XferStart(dev *Device, p *Pipe) error { return nil }
func (s *stubHCI) XferCancel(dev *Device, p *Pipe)      {}
func (s *stubHCI) XferStatus(dev *Device, p *Pipe) (Status, error) {
	return StatusXferDone, nil
}

func TestPipePoolAcquireRelease(t *testing.T) {
	pp := NewPipePool(&stubHCI{})
	require.NoError(t, pp.Allocate())

	got := make([]uint8, 0, NCtrlEndpoints)
	for i := 0; i < NCtrlEndpoints; i++ {
		idx, err := pp.AcquireMessagePipe(uint8(i))
		require.NoError(t, err)
		require.Equal(t, uint8(i), pp.OwnerOf(idx))
		got = append(got, idx)
	}

	_, err := pp.AcquireMessagePipe(99)
	require.ErrorIs(t, err, ErrNoFreePipe)

	pp.ReleaseMessagePipe(got[0])
	idx, err := pp.AcquireMessagePipe(42)
	require.NoError(t, err)
	require.Equal(t, got[0], idx)
	require.Equal(t, uint8(42), pp.OwnerOf(idx))
}

func TestInterfaceReleaseEndpoints(t *testing.T) {
	pp := NewPipePool(&stubHCI{})
	iface := &Interface{}
	iface.reset()

	for i := 0; i < 2; i++ {
		p := Pipe{Dir: DirIn, Type: TransferTypeBulk}
		require.NoError(t, pp.Configure(&Device{}, &p))
		iface.Endpoints[i] = p
		iface.NumEps++
	}

	iface.releaseEndpoints(pp)
	require.EqualValues(t, 0xFF, iface.Endpoints[0].Dir)
}
