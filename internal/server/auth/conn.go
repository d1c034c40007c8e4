package auth

import (
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// Role selects the nonce direction byte so both sides never seal under the
// same nonce with the shared session key.
type Role byte

const (
	RoleClient Role = 1
	RoleServer Role = 2
)

// ErrReplay is returned when a packet nonce does not advance.
var ErrReplay = errors.New("auth: replayed or reordered packet")

// Conn frames every Write as a length prefixed ChaCha20-Poly1305 packet:
// u32 big endian length, 12 byte nonce (direction byte + u64 counter),
// ciphertext.
type Conn struct {
	net.Conn
	aead cipher.AEAD
	role Role

	wmu     sync.Mutex
	sendCtr uint64

	rmu     sync.Mutex
	recvCtr uint64
	recvBuf bytes.Buffer
}

const maxPacketSize = 64 * 1024

// WrapConn wraps conn with the encrypted framing for the given role.
func WrapConn(conn net.Conn, sessionKey []byte, role Role) (net.Conn, error) {
	aead, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return nil, err
	}
	return &Conn{Conn: conn, aead: aead, role: role}, nil
}

func (c *Conn) peer() Role {
	if c.role == RoleClient {
		return RoleServer
	}
	return RoleClient
}

func (c *Conn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	nonce := make([]byte, chacha20poly1305.NonceSize)
	nonce[0] = byte(c.role)
	binary.BigEndian.PutUint64(nonce[4:], c.sendCtr)
	c.sendCtr++

	ct := c.aead.Seal(nil, nonce, p, nil)
	pkt := make([]byte, 4, 4+len(nonce)+len(ct))
	binary.BigEndian.PutUint32(pkt, uint32(len(nonce)+len(ct)))
	pkt = append(pkt, nonce...)
	pkt = append(pkt, ct...)

	if _, err := c.Conn.Write(pkt); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *Conn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	if c.recvBuf.Len() == 0 {
		if err := c.readPacket(); err != nil {
			return 0, err
		}
	}
	return c.recvBuf.Read(p)
}

func (c *Conn) readPacket() error {
	var hdr [4]byte
	if _, err := io.ReadFull(c.Conn, hdr[:]); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if length < chacha20poly1305.NonceSize || length > maxPacketSize {
		return io.ErrUnexpectedEOF
	}
	pkt := make([]byte, length)
	if _, err := io.ReadFull(c.Conn, pkt); err != nil {
		return err
	}

	nonce := pkt[:chacha20poly1305.NonceSize]
	if Role(nonce[0]) != c.peer() {
		return ErrReplay
	}
	ctr := binary.BigEndian.Uint64(nonce[4:])
	if ctr < c.recvCtr {
		return ErrReplay
	}

	pt, err := c.aead.Open(nil, nonce, pkt[chacha20poly1305.NonceSize:], nil)
	if err != nil {
		return err
	}
	c.recvCtr = ctr + 1
	c.recvBuf.Write(pt)
	return nil
}
