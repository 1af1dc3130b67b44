package eip

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/eip/enip"
)

// rawBackend is the minimal encapsulation client: it runs the RegisterSession
// handshake, pushes CIP read/write frames through the registered session, and
// counts any reply at all as success without decoding the body. A read
// therefore yields no value, only proof of life; use the logix backend when
// values matter.
type rawBackend struct {
	logger *slog.Logger
}

func (b *rawBackend) Connect(ctx context.Context, dev models.EIPDevice) (string, error) {
	s, err := openSession(ctx, dev)
	if err != nil {
		return "", err
	}
	s.close()
	return "session registered", nil
}

func (b *rawBackend) ReadTag(ctx context.Context, dev models.EIPDevice, tag models.EIPTag) (models.Value, error) {
	elements := binary.LittleEndian.AppendUint16(nil, 1)
	if err := b.exchange(ctx, dev, enip.Request(enip.ServiceReadTag, enip.SymbolPath(tag.TagName), elements)); err != nil {
		return models.Value{}, err
	}
	b.logger.Debug("eip: raw read acknowledged", "device", dev.Name, "tag", tag.TagName)
	return models.Value{Raw: nil, Type: "UNKNOWN"}, nil
}

func (b *rawBackend) WriteTag(ctx context.Context, dev models.EIPDevice, tag models.EIPTag, value string) error {
	payload, err := enip.EncodeValue(tag.DataType, value)
	if err != nil {
		return err
	}
	return b.exchange(ctx, dev, enip.Request(enip.ServiceWriteTag, enip.SymbolPath(tag.TagName), payload))
}

func (b *rawBackend) ListTags(ctx context.Context, dev models.EIPDevice) ([]models.EIPTag, error) {
	return nil, fmt.Errorf("%w: tag enumeration needs the logix backend", ErrUnsupported)
}

func (b *rawBackend) Close() error { return nil }

// exchange sends one CIP message and waits for any framed reply.
func (b *rawBackend) exchange(ctx context.Context, dev models.EIPDevice, cip []byte) error {
	s, err := openSession(ctx, dev)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.send(enip.SendRRData(s.handle, enip.UnconnectedSend(cip, s.slot))); err != nil {
		return err
	}
	_, _, err = s.receive()
	return err
}
