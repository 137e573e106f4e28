package scsi

/*
 * mac68k - SCSI tests.
 *
 * Copyright 2024, Richard Cornwell
 */

import "testing"

type memTarget struct {
	blocks [][512]byte
}

func newMemTarget(n int) *memTarget {
	return &memTarget{blocks: make([][512]byte, n)}
}

func (m *memTarget) ReadBlock(lba uint32, buf []byte) error {
	copy(buf, m.blocks[lba][:])
	return nil
}

func (m *memTarget) WriteBlock(lba uint32, buf []byte) error {
	copy(m.blocks[lba][:], buf)
	return nil
}

func (m *memTarget) BlockCount() uint32 { return uint32(len(m.blocks)) }

// selectTarget drives the bus through arbitration and selection to reach
// PhaseCommand, addressing target id with initiator bit 7.
func selectTarget(b *Bus, id int) {
	b.WriteODR(0x80) // initiator ID 7
	b.WriteMR(0x01)  // ARBITRATE
	b.WriteICR(0x04) // assert SEL
	b.WriteODR(0x80 | byte(1<<uint(id)))
	b.WriteICR(0x0C) // assert BSY while SEL held
	b.WriteICR(0x04) // release BSY, SEL still held -> selection completes
}

func sendCommand(b *Bus, cmd []byte) {
	for _, by := range cmd {
		b.WriteODR(by)
		b.WriteICR(0x00)
		b.WriteICR(0x01) // ACK rising edge latches the byte
	}
}

// TestInquiry walks a full Inquiry transaction from arbitration to
// bus-free and checks the reply fields.
func TestInquiry(t *testing.T) {
	b := New()
	b.Attach(0, newMemTarget(100))
	selectTarget(b, 0)
	if b.Phase() != PhaseCommand {
		t.Fatalf("phase after selection = %v, want PhaseCommand", b.Phase())
	}
	sendCommand(b, []byte{0x12, 0, 0, 0, 36, 0})
	if b.Phase() != PhaseDataIn {
		t.Fatalf("phase after Inquiry = %v, want PhaseDataIn", b.Phase())
	}
	var reply []byte
	for i := 0; i < 36; i++ {
		reply = append(reply, b.ReadDataIn())
	}
	if string(reply[8:16]) != "PALEOEMU" {
		t.Errorf("vendor field = %q, want PALEOEMU", reply[8:16])
	}
	if string(reply[16:32]) != "MAC68K DISK     " {
		t.Errorf("product field = %q", reply[16:32])
	}
	if reply[4] != 32 {
		t.Errorf("additional length = %d, want 32", reply[4])
	}
	if b.Phase() != PhaseStatus {
		t.Fatalf("phase after draining Inquiry data = %v, want PhaseStatus", b.Phase())
	}
	if b.ReadStatus() != statusGood {
		t.Error("status != GOOD")
	}
	if b.ReadMessage() != msgCommandComplete {
		t.Error("message != COMMAND COMPLETE")
	}
	if b.Phase() != PhaseBusFree {
		t.Error("bus did not return to bus_free")
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	b := New()
	tgt := newMemTarget(10)
	b.Attach(0, tgt)

	selectTarget(b, 0)
	sendCommand(b, []byte{0x0A, 0, 0, 0, 1, 0}) // Write(6), LBA 0, 1 block
	if b.Phase() != PhaseDataOut {
		t.Fatalf("phase after Write = %v, want PhaseDataOut", b.Phase())
	}
	for i := 0; i < 512; i++ {
		b.WriteODR(byte(i))
		b.WriteICR(0x00)
		b.WriteICR(0x01)
	}
	if b.Phase() != PhaseStatus {
		t.Fatalf("phase after write data drained = %v, want PhaseStatus", b.Phase())
	}
	b.ReadStatus()
	b.ReadMessage()

	if tgt.blocks[0][1] != 1 {
		t.Errorf("committed block byte 1 = %d, want 1", tgt.blocks[0][1])
	}

	selectTarget(b, 0)
	sendCommand(b, []byte{0x08, 0, 0, 0, 1, 0})
	if b.Phase() != PhaseDataIn {
		t.Fatalf("phase after Read = %v, want PhaseDataIn", b.Phase())
	}
	if b.ReadDataIn() != 0 || b.ReadDataIn() != 1 {
		t.Error("read-back data mismatch")
	}
}

func TestSelectAbsentTargetDropsToFree(t *testing.T) {
	b := New()
	selectTarget(b, 3) // nothing attached at id 3
	if b.Phase() != PhaseBusFree {
		t.Errorf("phase after selecting absent target = %v, want PhaseBusFree", b.Phase())
	}
}

func TestReadCapacity(t *testing.T) {
	b := New()
	b.Attach(0, newMemTarget(1000))
	selectTarget(b, 0)
	sendCommand(b, []byte{0x25, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	if b.Phase() != PhaseDataIn {
		t.Fatalf("phase after Read Capacity = %v, want PhaseDataIn", b.Phase())
	}
	var reply []byte
	for i := 0; i < 8; i++ {
		reply = append(reply, b.ReadDataIn())
	}
	lastBlock := uint32(reply[0])<<24 | uint32(reply[1])<<16 | uint32(reply[2])<<8 | uint32(reply[3])
	if lastBlock != 999 {
		t.Errorf("last block = %d, want 999", lastBlock)
	}
	blockSize := uint32(reply[4])<<24 | uint32(reply[5])<<16 | uint32(reply[6])<<8 | uint32(reply[7])
	if blockSize != 512 {
		t.Errorf("block size = %d, want 512", blockSize)
	}
}

// TestReadTransferLengthZeroMeans256: a Read(6) transfer-length byte of
// 0x00 transfers 256 blocks.
func TestReadTransferLengthZeroMeans256(t *testing.T) {
	b := New()
	b.Attach(0, newMemTarget(300))
	selectTarget(b, 0)
	sendCommand(b, []byte{0x08, 0, 0, 0, 0, 0})
	if b.Phase() != PhaseDataIn {
		t.Fatalf("phase = %v, want PhaseDataIn", b.Phase())
	}
	if got := len(b.dataBuf); got != 256*512 {
		t.Errorf("transfer size = %d bytes, want %d", got, 256*512)
	}
}

func TestSerializeRoundTripMidCommand(t *testing.T) {
	b := New()
	b.Attach(0, newMemTarget(10))
	selectTarget(b, 0)
	sendCommand(b, []byte{0x0A, 0, 0, 0}) // half a Write(6) CDB

	rec := b.Serialize()

	b2 := New()
	b2.Attach(0, newMemTarget(10))
	if err := b2.Deserialize(rec); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	// Finish the CDB on the restored bus.
	sendCommand(b2, []byte{1, 0})
	if b2.Phase() != PhaseDataOut {
		t.Errorf("phase after resuming CDB = %v, want PhaseDataOut", b2.Phase())
	}
}
