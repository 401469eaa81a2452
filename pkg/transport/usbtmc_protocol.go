package transport

import (
	"encoding/binary"
	"fmt"
)

// USBTMC message IDs (USBTMC 1.0, table 2).
const (
	MsgDevDepMsgOut        = 0x01
	MsgRequestDevDepMsgIn  = 0x02
	MsgDevDepMsgIn         = 0x02
	MsgVendorSpecificOut   = 0x7E
	MsgRequestVendorSpecIn = 0x7F
)

// USBTMC interface class triple.
const (
	USBTMCClass    = 0xFE
	USBTMCSubClass = 0x03
)

// bmTransferAttributes flags.
const (
	AttrEOM         = 0x01
	AttrTermCharSet = 0x02
)

// usbtmcHeaderSize is the bulk header length preceding every message.
const usbtmcHeaderSize = 12

// USBTMCProtocol encodes and decodes USBTMC bulk messages and keeps the
// rolling bTag.
type USBTMCProtocol struct {
	tag byte
}

// NextTag returns the next bTag. Tags cycle 1..255; zero is never used.
func (p *USBTMCProtocol) NextTag() byte {
	p.tag++
	if p.tag == 0 {
		p.tag = 1
	}
	return p.tag
}

func header(msgID, tag byte, size uint32, attr byte) []byte {
	h := make([]byte, usbtmcHeaderSize)
	h[0] = msgID
	h[1] = tag
	h[2] = ^tag
	h[3] = 0x00
	binary.LittleEndian.PutUint32(h[4:8], size)
	h[8] = attr
	return h
}

// EncodeDevDepMsgOut builds a DEV_DEP_MSG_OUT transfer carrying data, padded
// to a multiple of four bytes.
func (p *USBTMCProtocol) EncodeDevDepMsgOut(tag byte, data []byte, eom bool) []byte {
	var attr byte
	if eom {
		attr = AttrEOM
	}
	msg := append(header(MsgDevDepMsgOut, tag, uint32(len(data)), attr), data...)
	if pad := len(msg) % 4; pad != 0 {
		msg = append(msg, make([]byte, 4-pad)...)
	}
	return msg
}

// EncodeRequestDevDepMsgIn asks the device to send up to maxLen bytes,
// optionally stopping at termChar.
func (p *USBTMCProtocol) EncodeRequestDevDepMsgIn(tag byte, maxLen uint32, termChar byte, useTermChar bool) []byte {
	var attr byte
	if useTermChar {
		attr = AttrTermCharSet
	}
	msg := header(MsgRequestDevDepMsgIn, tag, maxLen, attr)
	msg[9] = termChar
	return msg
}

// DecodeDevDepMsgIn validates a DEV_DEP_MSG_IN response for tag and returns
// its payload and whether the device flagged end of message.
func (p *USBTMCProtocol) DecodeDevDepMsgIn(tag byte, resp []byte) ([]byte, bool, error) {
	if len(resp) < usbtmcHeaderSize {
		return nil, false, fmt.Errorf("usbtmc: response too short (%d bytes)", len(resp))
	}
	if resp[0] != MsgDevDepMsgIn {
		return nil, false, fmt.Errorf("usbtmc: unexpected message id 0x%02X", resp[0])
	}
	if resp[1] != tag || resp[2] != ^tag {
		return nil, false, fmt.Errorf("usbtmc: tag mismatch: got 0x%02X, want 0x%02X", resp[1], tag)
	}
	size := int(binary.LittleEndian.Uint32(resp[4:8]))
	if len(resp) < usbtmcHeaderSize+size {
		return nil, false, fmt.Errorf("usbtmc: truncated payload: have %d, want %d", len(resp)-usbtmcHeaderSize, size)
	}
	eom := resp[8]&AttrEOM != 0
	return resp[usbtmcHeaderSize : usbtmcHeaderSize+size], eom, nil
}
