package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// EventType is the mutation kind stored in a LogEvent.
type EventType uint8

const (
	EventSetOverride     EventType = 1
	EventClearOverride   EventType = 2
	EventRestoreSnapshot EventType = 3
)

const logEventVersion uint8 = 1

// LogEvent is one persisted mutation record. Fields unused by a given
// EventType are left at their zero value (nil for strings).
type LogEvent struct {
	Type           EventType
	AppName        *string
	Commit         *string // post-event commit
	Timestamp      int64   // Unix nanoseconds
	SettingName    *string
	SettingValue   *string
	RestoredCommit *string
	DataCenter     uint32
	User           *string
}

// Marshal encodes e as a version byte, then the event's fields in
// declaration order, little-endian, with nullable strings prefixed by a
// 0x00/0x01 presence byte.
func (e LogEvent) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(logEventVersion)
	buf.WriteByte(byte(e.Type))

	for _, s := range []*string{e.AppName, e.Commit} {
		if err := writeNullableString(&buf, s); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.LittleEndian, e.Timestamp); err != nil {
		return nil, err
	}

	for _, s := range []*string{e.SettingName, e.SettingValue, e.RestoredCommit} {
		if err := writeNullableString(&buf, s); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.LittleEndian, e.DataCenter); err != nil {
		return nil, err
	}

	if err := writeNullableString(&buf, e.User); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// UnmarshalLogEvent decodes a record produced by LogEvent.Marshal.
func UnmarshalLogEvent(raw []byte) (LogEvent, error) {
	r := bytes.NewReader(raw)

	version, err := r.ReadByte()
	if err != nil {
		return LogEvent{}, fmt.Errorf("codec: read version: %w", err)
	}
	if version != logEventVersion {
		return LogEvent{}, fmt.Errorf("codec: unsupported log event version %d", version)
	}

	typeByte, err := r.ReadByte()
	if err != nil {
		return LogEvent{}, fmt.Errorf("codec: read type: %w", err)
	}

	var e LogEvent
	e.Type = EventType(typeByte)

	if e.AppName, err = readNullableString(r); err != nil {
		return LogEvent{}, fmt.Errorf("codec: read appName: %w", err)
	}
	if e.Commit, err = readNullableString(r); err != nil {
		return LogEvent{}, fmt.Errorf("codec: read commit: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &e.Timestamp); err != nil {
		return LogEvent{}, fmt.Errorf("codec: read timestamp: %w", err)
	}
	if e.SettingName, err = readNullableString(r); err != nil {
		return LogEvent{}, fmt.Errorf("codec: read settingName: %w", err)
	}
	if e.SettingValue, err = readNullableString(r); err != nil {
		return LogEvent{}, fmt.Errorf("codec: read settingValue: %w", err)
	}
	if e.RestoredCommit, err = readNullableString(r); err != nil {
		return LogEvent{}, fmt.Errorf("codec: read restoredCommit: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &e.DataCenter); err != nil {
		return LogEvent{}, fmt.Errorf("codec: read dataCenter: %w", err)
	}
	if e.User, err = readNullableString(r); err != nil {
		return LogEvent{}, fmt.Errorf("codec: read user: %w", err)
	}

	return e, nil
}

func writeNullableString(buf *bytes.Buffer, s *string) error {
	if s == nil {
		return buf.WriteByte(0x00)
	}
	if err := buf.WriteByte(0x01); err != nil {
		return err
	}
	b := []byte(*s)
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := buf.Write(b)
	return err
}

func readNullableString(r *bytes.Reader) (*string, error) {
	marker, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if marker == 0x00 {
		return nil, nil
	}
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	s := string(buf)
	return &s, nil
}
