// Package codec implements the two fixed wire formats: the flat key/value
// encoding a Backend persists each override as, and the binary
// per-mutation log event layout.
package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/getnfig/nfig/nfigerr"
	"github.com/getnfig/nfig/tier"
	"github.com/getnfig/nfig/values"
)

// EncodeOverrideKey renders the storage key for an override:
//
//	dataCenterInt "," subAppIdStr ";" settingName
func EncodeOverrideKey(k values.OverrideKey) string {
	subAppIDStr := ""
	if k.HasSubApp {
		subAppIDStr = strconv.Itoa(k.SubAppID)
	}
	return fmt.Sprintf("%d,%s;%s", int32(k.DataCenter), subAppIDStr, k.Name)
}

// DecodeOverrideKey parses a storage key produced by EncodeOverrideKey.
func DecodeOverrideKey(raw string) (values.OverrideKey, error) {
	head, name, ok := strings.Cut(raw, ";")
	if !ok {
		return values.OverrideKey{}, &nfigerr.InvalidOverrideValueError{Name: raw, Value: raw, Err: fmt.Errorf("codec: malformed override key %q: missing ';'", raw)}
	}
	dcStr, subAppIDStr, ok := strings.Cut(head, ",")
	if !ok {
		return values.OverrideKey{}, &nfigerr.InvalidOverrideValueError{Name: raw, Value: raw, Err: fmt.Errorf("codec: malformed override key %q: missing ','", raw)}
	}
	dc, err := strconv.ParseInt(dcStr, 10, 32)
	if err != nil {
		return values.OverrideKey{}, &nfigerr.InvalidOverrideValueError{Name: name, Value: raw, Err: fmt.Errorf("codec: bad data center %q: %w", dcStr, err)}
	}

	var subAppID int
	hasSubApp := subAppIDStr != ""
	if hasSubApp {
		subAppID, err = strconv.Atoi(subAppIDStr)
		if err != nil {
			return values.OverrideKey{}, &nfigerr.InvalidOverrideValueError{Name: name, Value: raw, Err: fmt.Errorf("codec: bad subAppId %q: %w", subAppIDStr, err)}
		}
	}

	return values.OverrideKey{
		Name:       name,
		SubAppID:   subAppID,
		HasSubApp:  hasSubApp,
		DataCenter: tier.DataCenter(dc),
	}, nil
}

// EncodeOverrideValue renders the storage value:
//
//	(ISO-8601 expirationTime | "") ";" rawValue
func EncodeOverrideValue(rawValue string, expiration *time.Time) string {
	expStr := ""
	if expiration != nil {
		expStr = expiration.UTC().Format(time.RFC3339Nano)
	}
	return expStr + ";" + rawValue
}

// DecodeOverrideValue parses a storage value produced by EncodeOverrideValue.
func DecodeOverrideValue(name, raw string) (rawValue string, expiration *time.Time, err error) {
	expStr, value, ok := strings.Cut(raw, ";")
	if !ok {
		return "", nil, &nfigerr.InvalidOverrideValueError{Name: name, Value: raw, Err: fmt.Errorf("codec: malformed override value %q: missing ';'", raw)}
	}
	if expStr == "" {
		return value, nil, nil
	}
	t, parseErr := time.Parse(time.RFC3339Nano, expStr)
	if parseErr != nil {
		return "", nil, &nfigerr.InvalidOverrideValueError{Name: name, Value: raw, Err: fmt.Errorf("codec: bad expiration %q: %w", expStr, parseErr)}
	}
	return value, &t, nil
}

// EncodeOverride is a convenience wrapper combining EncodeOverrideKey and
// EncodeOverrideValue for one OverrideValue.
func EncodeOverride(o values.OverrideValue) (key, value string) {
	return EncodeOverrideKey(o.Key()), EncodeOverrideValue(o.StringValue, o.ExpirationTime)
}

// DecodeOverride reverses EncodeOverride.
func DecodeOverride(rawKey, rawValue string) (values.OverrideValue, error) {
	k, err := DecodeOverrideKey(rawKey)
	if err != nil {
		return values.OverrideValue{}, err
	}
	value, expiration, err := DecodeOverrideValue(k.Name, rawValue)
	if err != nil {
		return values.OverrideValue{}, err
	}
	var subAppID *int
	if k.HasSubApp {
		id := k.SubAppID
		subAppID = &id
	}
	return values.OverrideValue{
		Name:           k.Name,
		StringValue:    value,
		SubAppID:       subAppID,
		DataCenter:     k.DataCenter,
		ExpirationTime: expiration,
	}, nil
}
