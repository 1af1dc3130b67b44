package eip

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/eip/enip"
)

// defaultPort is the registered EtherNet/IP TCP port.
const defaultPort = 44818

// ─────────────────────────────────────────────────────────────────────────────
// Scoped session
// ─────────────────────────────────────────────────────────────────────────────

// session is a registered encapsulation session on one controller, alive for
// the duration of a single adapter operation.
type session struct {
	ctx     context.Context
	conn    net.Conn
	handle  uint32
	slot    uint8
	timeout time.Duration
}

// openSession dials the controller and registers an encapsulation session.
// The caller must close it on every exit path. The device address may carry
// an explicit port; without one the registered EtherNet/IP port is used.
func openSession(ctx context.Context, dev models.EIPDevice) (*session, error) {
	addr := dev.IPAddress
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(defaultPort))
	}
	d := net.Dialer{Timeout: dev.SocketTimeout()}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("eip: dial %s: %w", addr, err)
	}
	s := &session{ctx: ctx, conn: conn, slot: uint8(dev.Slot), timeout: dev.SocketTimeout()}
	if err := s.register(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) register() error {
	if err := s.send(enip.RegisterSession()); err != nil {
		return err
	}
	h, _, err := s.receive()
	if err != nil {
		return err
	}
	if h.Status != 0 {
		return fmt.Errorf("eip: session rejected with encapsulation status 0x%08X", h.Status)
	}
	s.handle = h.Session
	return nil
}

// close unregisters the session and drops the stream. Best effort: the
// target tears down its side when the TCP connection goes either way.
func (s *session) close() {
	_ = s.send(enip.UnRegisterSession(s.handle))
	_ = s.conn.Close()
}

// deadline is the per-exchange I/O bound: the device socket timeout, pulled
// in further when the calling context expires sooner.
func (s *session) deadline() time.Time {
	d := time.Now().Add(s.timeout)
	if t, ok := s.ctx.Deadline(); ok && t.Before(d) {
		d = t
	}
	return d
}

func (s *session) send(frame []byte) error {
	if err := s.conn.SetWriteDeadline(s.deadline()); err != nil {
		return err
	}
	if _, err := s.conn.Write(frame); err != nil {
		return fmt.Errorf("eip: send: %w", err)
	}
	return nil
}

func (s *session) receive() (enip.Header, []byte, error) {
	if err := s.conn.SetReadDeadline(s.deadline()); err != nil {
		return enip.Header{}, nil, err
	}
	return enip.ReadFrame(s.conn)
}

// request round-trips one CIP message through an Unconnected Send and
// returns the parsed inner reply.
func (s *session) request(cip []byte) (enip.Response, error) {
	if err := s.send(enip.SendRRData(s.handle, enip.UnconnectedSend(cip, s.slot))); err != nil {
		return enip.Response{}, err
	}
	h, data, err := s.receive()
	if err != nil {
		return enip.Response{}, err
	}
	if h.Status != 0 {
		return enip.Response{}, fmt.Errorf("eip: encapsulation status 0x%08X", h.Status)
	}
	inner, err := enip.UnpackSendRRData(data)
	if err != nil {
		return enip.Response{}, err
	}
	return enip.ParseResponse(inner)
}

// ─────────────────────────────────────────────────────────────────────────────
// Logix backend
// ─────────────────────────────────────────────────────────────────────────────

// logixBackend is the full CIP client for Logix-family controllers.
type logixBackend struct {
	logger *slog.Logger
}

func (b *logixBackend) Connect(ctx context.Context, dev models.EIPDevice) (string, error) {
	s, err := openSession(ctx, dev)
	if err != nil {
		return "", err
	}
	defer s.close()

	resp, err := s.request(enip.Request(enip.ServiceGetAttributesAll, enip.LogicalPath(enip.ClassIdentity, 1), nil))
	if err != nil {
		return "", err
	}
	if err := respErr(resp, ""); err != nil {
		return "", err
	}
	name := identityProductName(resp.Data)
	b.logger.Debug("eip: identity probe ok", "device", dev.Name, "product", name)
	if name == "" {
		return "session registered", nil
	}
	return "connected to " + name, nil
}

func (b *logixBackend) ReadTag(ctx context.Context, dev models.EIPDevice, tag models.EIPTag) (models.Value, error) {
	s, err := openSession(ctx, dev)
	if err != nil {
		return models.Value{}, err
	}
	defer s.close()

	elements := binary.LittleEndian.AppendUint16(nil, 1)
	resp, err := s.request(enip.Request(enip.ServiceReadTag, enip.SymbolPath(tag.TagName), elements))
	if err != nil {
		return models.Value{}, err
	}
	if err := respErr(resp, tag.TagName); err != nil {
		return models.Value{}, err
	}
	return enip.DecodeValue(resp.Data)
}

func (b *logixBackend) WriteTag(ctx context.Context, dev models.EIPDevice, tag models.EIPTag, value string) error {
	payload, err := enip.EncodeValue(tag.DataType, value)
	if err != nil {
		return err
	}
	s, err := openSession(ctx, dev)
	if err != nil {
		return err
	}
	defer s.close()

	resp, err := s.request(enip.Request(enip.ServiceWriteTag, enip.SymbolPath(tag.TagName), payload))
	if err != nil {
		return err
	}
	return respErr(resp, tag.TagName)
}

func (b *logixBackend) ListTags(ctx context.Context, dev models.EIPDevice) ([]models.EIPTag, error) {
	s, err := openSession(ctx, dev)
	if err != nil {
		return nil, err
	}
	defer s.close()

	// Ask for attribute 1 (symbol name) and 2 (symbol type), resuming past
	// the last instance for as long as the controller reports partial
	// transfers.
	attrs := make([]byte, 6)
	binary.LittleEndian.PutUint16(attrs[0:2], 2)
	binary.LittleEndian.PutUint16(attrs[2:4], 1)
	binary.LittleEndian.PutUint16(attrs[4:6], 2)

	var tags []models.EIPTag
	instance := uint16(0)
	for {
		resp, err := s.request(enip.Request(enip.ServiceGetInstanceAttributeList, enip.LogicalPath(enip.ClassSymbolObject, instance), attrs))
		if err != nil {
			return nil, err
		}
		if err := respErr(resp, ""); err != nil {
			return nil, err
		}
		last, err := parseSymbolList(resp.Data, &tags)
		if err != nil {
			return nil, err
		}
		if !resp.More() {
			b.logger.Debug("eip: tag list complete", "device", dev.Name, "tags", len(tags))
			return tags, nil
		}
		instance = last + 1
	}
}

func (b *logixBackend) Close() error { return nil }

// ─────────────────────────────────────────────────────────────────────────────
// Reply handling
// ─────────────────────────────────────────────────────────────────────────────

// respErr maps CIP failure statuses onto the package sentinels: a missing
// symbol resolves to ErrTagNotFound when the operation names a tag, a
// capability gap to ErrUnsupported.
func respErr(resp enip.Response, tag string) error {
	err := resp.Err()
	if err == nil {
		return nil
	}
	var se *enip.StatusError
	if errors.As(err, &se) {
		if tag != "" && (se.Status == enip.StatusPathSegment || se.Status == enip.StatusPathUnknown) {
			return fmt.Errorf("%w: %s", ErrTagNotFound, tag)
		}
		if se.Unsupported() {
			return fmt.Errorf("%w: %v", ErrUnsupported, se)
		}
	}
	return err
}

// identityProductName pulls the product name out of an Identity object
// Get Attributes All reply: six fixed attributes (14 bytes) followed by a
// length-prefixed short string.
func identityProductName(b []byte) string {
	if len(b) < 15 {
		return ""
	}
	n := int(b[14])
	if 15+n > len(b) {
		return ""
	}
	return string(b[15 : 15+n])
}

// parseSymbolList appends the symbols in one tag-list reply and returns the
// last instance ID seen, so a partial transfer can resume past it. Symbols
// the controller keeps for itself (program-scoped names carrying a colon,
// double-underscore internals) are skipped.
func parseSymbolList(b []byte, tags *[]models.EIPTag) (uint16, error) {
	var last uint32
	off := 0
	for off < len(b) {
		if off+6 > len(b) {
			return 0, fmt.Errorf("eip: symbol entry truncated at offset %d", off)
		}
		last = binary.LittleEndian.Uint32(b[off : off+4])
		n := int(binary.LittleEndian.Uint16(b[off+4 : off+6]))
		off += 6
		if off+n+2 > len(b) {
			return 0, fmt.Errorf("eip: symbol entry truncated at offset %d", off)
		}
		name := string(b[off : off+n])
		code := binary.LittleEndian.Uint16(b[off+n : off+n+2])
		off += n + 2
		if strings.Contains(name, ":") || strings.HasPrefix(name, "__") {
			continue
		}
		*tags = append(*tags, models.EIPTag{TagName: name, DataType: enip.TypeName(code), Enabled: true})
	}
	return uint16(last), nil
}
