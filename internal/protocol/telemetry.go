package protocol

import (
	"encoding/binary"
	"fmt"
)

// ImageMeta describes the image the satellite has stored. UID 0 means none.
type ImageMeta struct {
	UID   uint8
	Size  uint32 // bytes
	Count uint16 // number of chunks
}

const imageMetaSize = 7

// DecodeImageMeta parses an ImageInfo payload: uid(1) size(4) count(2).
func DecodeImageMeta(payload []byte) (ImageMeta, error) {
	if len(payload) < imageMetaSize {
		return ImageMeta{}, shortPayload(KindImageInfo, imageMetaSize, len(payload))
	}
	return ImageMeta{
		UID:   payload[0],
		Size:  binary.BigEndian.Uint32(payload[1:5]),
		Count: binary.BigEndian.Uint16(payload[5:7]),
	}, nil
}

// EncodeImageMeta is the inverse of DecodeImageMeta.
func EncodeImageMeta(m ImageMeta) []byte {
	b := make([]byte, imageMetaSize)
	b[0] = m.UID
	binary.BigEndian.PutUint32(b[1:5], m.Size)
	binary.BigEndian.PutUint16(b[5:7], m.Count)
	return b
}

// OtaResponse is the satellite's verdict on the last OTA window.
type OtaResponse struct {
	OK  bool   // every chunk of the window arrived
	Seq uint16 // sequence the satellite wants next when OK is false
}

const otaResponseSize = 3

// DecodeOtaResponse parses an OtaResponse payload: ok(1) seq(2).
func DecodeOtaResponse(payload []byte) (OtaResponse, error) {
	if len(payload) < otaResponseSize {
		return OtaResponse{}, shortPayload(KindOtaResponse, otaResponseSize, len(payload))
	}
	return OtaResponse{
		OK:  payload[0] != 0,
		Seq: binary.BigEndian.Uint16(payload[1:3]),
	}, nil
}

// EncodeOtaResponse is the inverse of DecodeOtaResponse.
func EncodeOtaResponse(r OtaResponse) []byte {
	b := make([]byte, otaResponseSize)
	if r.OK {
		b[0] = 1
	}
	binary.BigEndian.PutUint16(b[1:3], r.Seq)
	return b
}

// BatteryTelemetry is the body of a battery heartbeat.
type BatteryTelemetry struct {
	Status        uint16
	SOC           [6]uint8 // state of charge per cell, percent
	Current       int16
	RebootCount   uint8
	PayloadStatus uint8
	Time          uint32 // satellite clock, seconds
}

const batterySize = 16

// DecodeBattery parses a battery heartbeat payload.
func DecodeBattery(payload []byte) (BatteryTelemetry, error) {
	if len(payload) < batterySize {
		return BatteryTelemetry{}, shortPayload(KindHeartbeatBattery, batterySize, len(payload))
	}
	var t BatteryTelemetry
	t.Status = binary.BigEndian.Uint16(payload[0:2])
	copy(t.SOC[:], payload[2:8])
	t.Current = int16(binary.BigEndian.Uint16(payload[8:10]))
	t.RebootCount = payload[10]
	t.PayloadStatus = payload[11]
	t.Time = binary.BigEndian.Uint32(payload[12:16])
	return t, nil
}

// EncodeBattery is the inverse of DecodeBattery.
func EncodeBattery(t BatteryTelemetry) []byte {
	b := make([]byte, batterySize)
	binary.BigEndian.PutUint16(b[0:2], t.Status)
	copy(b[2:8], t.SOC[:])
	binary.BigEndian.PutUint16(b[8:10], uint16(t.Current))
	b[10] = t.RebootCount
	b[11] = t.PayloadStatus
	binary.BigEndian.PutUint32(b[12:16], t.Time)
	return b
}

// SunTelemetry is the body of a sun-vector heartbeat.
type SunTelemetry struct {
	Status  uint16
	X, Y, Z float64 // unit sun vector, high-precision fixed point on the wire
	Time    uint32
}

const sunSize = 18

// DecodeSun parses a sun heartbeat payload.
func DecodeSun(payload []byte) (SunTelemetry, error) {
	if len(payload) < sunSize {
		return SunTelemetry{}, shortPayload(KindHeartbeatSun, sunSize, len(payload))
	}
	return SunTelemetry{
		Status: binary.BigEndian.Uint16(payload[0:2]),
		X:      DecodeFixedHP(payload[2:6]),
		Y:      DecodeFixedHP(payload[6:10]),
		Z:      DecodeFixedHP(payload[10:14]),
		Time:   binary.BigEndian.Uint32(payload[14:18]),
	}, nil
}

// EncodeSun is the inverse of DecodeSun, up to the decode bias.
func EncodeSun(t SunTelemetry) []byte {
	b := make([]byte, sunSize)
	binary.BigEndian.PutUint16(b[0:2], t.Status)
	x, y, z := EncodeFixedHP(t.X), EncodeFixedHP(t.Y), EncodeFixedHP(t.Z)
	copy(b[2:6], x[:])
	copy(b[6:10], y[:])
	copy(b[10:14], z[:])
	binary.BigEndian.PutUint32(b[14:18], t.Time)
	return b
}

func shortPayload(k Kind, need, got int) error {
	return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrMalformedPayload, k, need, got)
}
