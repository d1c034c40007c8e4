package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/Alia5/wiistream/apitypes"
)

const (
	HandshakeMagic = "wST1\x00"
	NonceSize      = 32
	authContext    = "wiistream-Auth-v1"
	okPrefix       = "OK\x00"
)

func clientMAC(key, clientNonce []byte) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(authContext))
	_, _ = mac.Write(clientNonce)
	return mac.Sum(nil)
}

// ClientHello builds the client handshake message: magic, nonce and HMAC.
func ClientHello(key, clientNonce []byte) []byte {
	msg := append([]byte(HandshakeMagic), clientNonce...)
	return append(msg, clientMAC(key, clientNonce)...)
}

// ReadClientHello reads and verifies a client handshake. A wrong magic is
// a bad request, a wrong MAC is unauthorized.
func ReadClientHello(r io.Reader, key []byte) (clientNonce []byte, err error) {
	magic := make([]byte, len(HandshakeMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read handshake magic: %w", err)
	}
	if string(magic) != HandshakeMagic {
		return nil, apitypes.ErrBadRequest("expected authentication handshake")
	}
	clientNonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(r, clientNonce); err != nil {
		return nil, fmt.Errorf("read client nonce: %w", err)
	}
	clientAuth := make([]byte, sha256.Size)
	if _, err := io.ReadFull(r, clientAuth); err != nil {
		return nil, fmt.Errorf("read client auth: %w", err)
	}
	if !hmac.Equal(clientAuth, clientMAC(key, clientNonce)) {
		return nil, apitypes.ErrUnauthorized("invalid password")
	}
	return clientNonce, nil
}

// WriteServerHello generates the server nonce and sends "OK\0" + nonce.
func WriteServerHello(w io.Writer) (serverNonce []byte, err error) {
	if w == nil {
		return nil, fmt.Errorf("write response: write on nil pointer")
	}
	serverNonce = make([]byte, NonceSize)
	if _, err = rand.Read(serverNonce); err != nil {
		return nil, fmt.Errorf("generate server nonce: %w", err)
	}
	if _, err = w.Write(append([]byte(okPrefix), serverNonce...)); err != nil {
		return nil, fmt.Errorf("write response: %w", err)
	}
	return serverNonce, nil
}

// Accept runs the server side of the handshake on conn and returns the
// encrypted connection. On failure the peer receives a problem+json line.
func Accept(conn net.Conn, key []byte) (net.Conn, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("handshake: missing key")
	}
	clientNonce, err := ReadClientHello(conn, key)
	if err != nil {
		if b, jerr := json.Marshal(apitypes.WrapError(err)); jerr == nil {
			_, _ = fmt.Fprintf(conn, "%s\n", b)
		}
		return nil, err
	}
	serverNonce, err := WriteServerHello(conn)
	if err != nil {
		return nil, err
	}
	return WrapConn(conn, DeriveSessionKey(key, serverNonce, clientNonce), RoleServer)
}

// Connect runs the client side of the handshake on conn and returns the
// encrypted connection.
func Connect(conn net.Conn, key []byte) (net.Conn, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("handshake: missing key")
	}
	clientNonce := make([]byte, NonceSize)
	if _, err := rand.Read(clientNonce); err != nil {
		return nil, fmt.Errorf("generate client nonce: %w", err)
	}
	if _, err := conn.Write(ClientHello(key, clientNonce)); err != nil {
		return nil, fmt.Errorf("write handshake: %w", err)
	}

	prefix := make([]byte, len(okPrefix))
	if _, err := io.ReadFull(conn, prefix); err != nil {
		return nil, fmt.Errorf("read handshake response: %w", err)
	}
	if string(prefix) != okPrefix {
		rest, _ := io.ReadAll(conn)
		line := strings.TrimSuffix(string(append(prefix, rest...)), "\n")
		var apiErr apitypes.ApiError
		if err := json.Unmarshal([]byte(line), &apiErr); err == nil && (apiErr.Status != 0 || apiErr.Title != "") {
			return nil, apiErr
		}
		return nil, fmt.Errorf("invalid handshake response from server: %q", line)
	}

	serverNonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(conn, serverNonce); err != nil {
		return nil, fmt.Errorf("read server nonce: %w", err)
	}
	return WrapConn(conn, DeriveSessionKey(key, serverNonce, clientNonce), RoleClient)
}
